package gateway

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	apperrors "github.com/edgard/wagate/internal/errors"
)

type chatSummary struct {
	Name string `json:"name"`
	ID   string `json:"id"`
}

type contactSummary struct {
	Name  string `json:"name"`
	ID    string `json:"id"`
	Phone string `json:"phone"`
}

type sendChatRequest struct {
	Target  string `json:"target"`
	Message string `json:"message"`
	File    string `json:"file"`
}

type removeParticipantRequest struct {
	Group       string `json:"group"`
	Participant string `json:"participant"`
}

type removeAllRequest struct {
	Group string `json:"group"`
}

type watchPDFRequest struct {
	Group     string `json:"group"`
	ForwardTo string `json:"forwardTo"`
}

func (g *Gateway) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
		"ready":  g.client.Ready(),
	})
}

func (g *Gateway) handleGroups(c *gin.Context) {
	chats, err := g.client.Chats(c.Request.Context())
	if err != nil {
		g.fail(c, apperrors.DispatchFailed("failed to list chats", err))
		return
	}

	groups := make([]chatSummary, 0)
	for _, chat := range chats {
		if !chat.IsGroup {
			continue
		}
		groups = append(groups, chatSummary{Name: chat.Name, ID: chat.ID})
	}
	c.JSON(http.StatusOK, groups)
}

func (g *Gateway) handleContacts(c *gin.Context) {
	chats, err := g.client.Chats(c.Request.Context())
	if err != nil {
		g.fail(c, apperrors.DispatchFailed("failed to list chats", err))
		return
	}

	contacts := make([]contactSummary, 0)
	for _, chat := range chats {
		if chat.IsGroup {
			continue
		}
		contacts = append(contacts, contactSummary{Name: chat.Name, ID: chat.ID, Phone: chat.Phone})
	}
	c.JSON(http.StatusOK, contacts)
}

func (g *Gateway) handleFindChat(c *gin.Context) {
	query := strings.TrimSpace(c.Query("q"))
	if query == "" {
		g.fail(c, apperrors.Validation("Missing query parameter 'q'"))
		return
	}

	chat, err := g.messenger.FindChat(c.Request.Context(), query)
	if err != nil {
		g.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"id":      chat.ID,
		"name":    chat.Name,
		"isGroup": chat.IsGroup,
	})
}

func (g *Gateway) handleSendChat(c *gin.Context) {
	var req sendChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		g.fail(c, apperrors.Validation("Invalid request body"))
		return
	}
	if req.Target == "" || (req.Message == "" && req.File == "") {
		g.fail(c, apperrors.Validation("Missing required fields 'target' and 'message'"))
		return
	}

	chat, err := g.messenger.Send(c.Request.Context(), req.Target, req.Message, req.File)
	if err != nil {
		g.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"status": "sent",
		"chat":   gin.H{"id": chat.ID, "name": chat.Name},
	})
}

func (g *Gateway) handleGroupParticipants(c *gin.Context) {
	group := strings.TrimSpace(c.Query("group"))
	if group == "" {
		g.fail(c, apperrors.Validation("Missing query parameter 'group'"))
		return
	}

	participants, err := g.messenger.ListParticipants(c.Request.Context(), group)
	if err != nil {
		g.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, participants)
}

func (g *Gateway) handleRemoveParticipant(c *gin.Context) {
	var req removeParticipantRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		g.fail(c, apperrors.Validation("Invalid request body"))
		return
	}
	if req.Group == "" || req.Participant == "" {
		g.fail(c, apperrors.Validation("Missing required fields 'group' and 'participant'"))
		return
	}

	removed, err := g.messenger.RemoveParticipant(c.Request.Context(), req.Group, req.Participant)
	if err != nil {
		g.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "removed", "removed": removed})
}

func (g *Gateway) handleRemoveAllParticipants(c *gin.Context) {
	var req removeAllRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		g.fail(c, apperrors.Validation("Invalid request body"))
		return
	}
	if req.Group == "" {
		g.fail(c, apperrors.Validation("Missing required field 'group'"))
		return
	}

	removed, err := g.messenger.RemoveAllParticipants(c.Request.Context(), req.Group)
	if err != nil {
		g.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "removed", "removed": removed})
}

func (g *Gateway) handleWatchPDF(c *gin.Context) {
	if g.watcher == nil {
		g.fail(c, apperrors.Validation("PDF watching is not configured"))
		return
	}

	var req watchPDFRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		g.fail(c, apperrors.Validation("Invalid request body"))
		return
	}
	if req.Group == "" || req.ForwardTo == "" {
		g.fail(c, apperrors.Validation("Missing required fields 'group' and 'forwardTo'"))
		return
	}

	if err := g.watcher.Configure(c.Request.Context(), req.Group, req.ForwardTo); err != nil {
		g.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "watching"})
}

func (g *Gateway) handleMessages(c *gin.Context) {
	if g.store == nil {
		g.fail(c, apperrors.Validation("Send history is not configured"))
		return
	}

	limit := 50
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 || parsed > 500 {
			g.fail(c, apperrors.Validation("Invalid query parameter 'limit'"))
			return
		}
		limit = parsed
	}

	msgs, err := g.store.RecentMessages(c.Request.Context(), c.Query("chat"), limit)
	if err != nil {
		g.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, msgs)
}
