package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"

	"messenger-service/internal/models"
	"messenger-service/internal/observability"
	"messenger-service/internal/storage"
	"messenger-service/internal/telemetry"
)

const maxStatusMediaSize = 20 << 20

// StatusHandler manages statuses, their privacy and view tracking.
type StatusHandler struct {
	Deps
}

// NewStatusHandler builds a StatusHandler.
func NewStatusHandler(deps Deps) *StatusHandler {
	return &StatusHandler{Deps: deps}
}

func (h *StatusHandler) presentStatus(s models.StatusWithAuthor) models.StatusWithAuthor {
	s.MediaURL = h.mediaURL(s.MediaURL)
	return s
}

// ListVisible returns the active statuses the caller may see, newest first.
func (h *StatusHandler) ListVisible(c *gin.Context) {
	statuses, err := h.Statuses.ListVisible(c.Request.Context(), c.GetInt("userID"), h.Clock.Now())
	if err != nil {
		h.respondError(c, err, "failed to load statuses")
		return
	}
	for i := range statuses {
		statuses[i] = h.presentStatus(statuses[i])
	}
	c.JSON(http.StatusOK, statuses)
}

type privacyRequest struct {
	PrivacyType   string `json:"privacy_type" form:"privacy_type" binding:"required,oneof=all selected except"`
	SelectedUsers []int  `json:"selected_users" form:"selected_users" binding:"omitempty,dive,gt=0"`
}

// privacy validates the request against the caller and known users.
func (h *StatusHandler) privacy(c *gin.Context, req privacyRequest) (models.StatusPrivacy, error) {
	selected := req.SelectedUsers
	if selected == nil && c.ContentType() == binding.MIMEMultipartPOSTForm {
		if values, ok := c.GetPostFormArray("selected_users[]"); ok {
			selected = make([]int, 0, len(values))
			for _, v := range values {
				id, err := strconv.Atoi(v)
				if err != nil || id <= 0 {
					return models.StatusPrivacy{}, models.NewValidationError("selected_users", "must contain user ids")
				}
				selected = append(selected, id)
			}
		}
	}

	privacy, err := models.NewStatusPrivacy(c.GetInt("userID"), models.PrivacyType(req.PrivacyType), selected)
	if err != nil {
		return models.StatusPrivacy{}, err
	}
	if err := h.checkUsersExist(c, "selected_users", privacy.SelectedUsers); err != nil {
		return models.StatusPrivacy{}, err
	}
	privacy.UpdatedAt = h.Clock.Now()
	return privacy, nil
}

type createStatusRequest struct {
	Type          string `json:"type" form:"type" binding:"required,oneof=text image video"`
	Content       string `json:"content" form:"content" binding:"max=500"`
	PrivacyType   string `json:"privacy_type" form:"privacy_type" binding:"required,oneof=all selected except"`
	SelectedUsers []int  `json:"selected_users" form:"selected_users" binding:"omitempty,dive,gt=0"`
}

// CreateStatus publishes a status and replaces the caller's privacy setting.
func (h *StatusHandler) CreateStatus(c *gin.Context) {
	var req createStatusRequest
	if !bind(c, &req) {
		return
	}
	media, err := formFile(c, "media")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "malformed upload"})
		return
	}
	if media != nil && media.Size > maxStatusMediaSize {
		respondValidation(c, models.NewValidationError("media", "must not be greater than 20480 kilobytes"))
		return
	}

	body, err := models.NewStatusBody(models.StatusType(req.Type), req.Content, media != nil)
	if err != nil {
		h.respondError(c, err, "could not create status")
		return
	}
	privacy, err := h.privacy(c, privacyRequest{PrivacyType: req.PrivacyType, SelectedUsers: req.SelectedUsers})
	if err != nil {
		h.respondError(c, err, "could not create status")
		return
	}

	userID := c.GetInt("userID")
	status := models.NewStatus(userID, body, h.Clock.Now())
	if media != nil {
		key, err := h.storeUpload(c, storage.StatusMediaDir, media)
		if err != nil {
			h.respondError(c, err, "could not store media")
			return
		}
		status.MediaURL = &key
	}

	created, err := h.Statuses.CreateStatus(c.Request.Context(), status, privacy)
	if err != nil {
		if status.MediaURL != nil {
			h.deleteMediaBestEffort(c, *status.MediaURL)
		}
		h.respondError(c, err, "could not create status")
		return
	}

	h.publish(c, "status", "status.created", gin.H{"status_id": created.ID, "user_id": userID, "type": created.Type})
	h.audit(c, telemetry.LevelInfo, "status "+strconv.Itoa(created.ID)+" created")
	c.JSON(http.StatusCreated, h.presentStatus(created))
}

// ViewStatus returns a status the caller may see and records the first view.
func (h *StatusHandler) ViewStatus(c *gin.Context) {
	statusID, ok := idParam(c, "status_id", "status")
	if !ok {
		return
	}
	ctx := c.Request.Context()
	viewerID := c.GetInt("userID")

	status, err := h.Statuses.GetStatus(ctx, statusID)
	if err != nil {
		h.respondError(c, err, "failed to load status")
		return
	}

	privacy, err := h.Statuses.GetPrivacy(ctx, status.UserID)
	if err != nil {
		h.respondError(c, err, "failed to load status")
		return
	}
	if !privacy.CanView(viewerID) {
		observability.IncStatusView(observability.ViewDenied)
		h.forbid(c, "view status "+strconv.Itoa(statusID))
		return
	}

	now := h.Clock.Now()
	if !status.IsActive(now) {
		observability.IncStatusView(observability.ViewExpired)
		c.JSON(http.StatusGone, gin.H{"error": "status has expired"})
		return
	}

	created, err := h.Statuses.RecordView(ctx, statusID, viewerID, now)
	if err != nil {
		h.respondError(c, err, "failed to record view")
		return
	}
	if created {
		observability.IncStatusView(observability.ViewRecorded)
		h.publish(c, "status", "status.viewed", gin.H{"status_id": statusID, "author_id": status.UserID, "viewer_id": viewerID})
	} else {
		observability.IncStatusView(observability.ViewRepeat)
	}

	viewers, err := h.Statuses.ListViewers(ctx, statusID)
	if err != nil {
		h.respondError(c, err, "failed to load viewers")
		return
	}
	c.JSON(http.StatusOK, models.StatusDetail{StatusWithAuthor: h.presentStatus(status), Viewers: viewers})
}

// DeleteStatus removes the caller's status, deleting its media first.
func (h *StatusHandler) DeleteStatus(c *gin.Context) {
	statusID, ok := idParam(c, "status_id", "status")
	if !ok {
		return
	}

	status, err := h.Statuses.GetStatus(c.Request.Context(), statusID)
	if err != nil {
		h.respondError(c, err, "failed to load status")
		return
	}
	if status.UserID != c.GetInt("userID") {
		h.forbid(c, "delete status "+strconv.Itoa(statusID))
		return
	}

	if status.HasMedia() {
		h.deleteMediaBestEffort(c, *status.MediaURL)
	}
	if err := h.Statuses.DeleteStatus(c.Request.Context(), statusID); err != nil {
		h.respondError(c, err, "could not delete status")
		return
	}

	h.publish(c, "status", "status.deleted", gin.H{"status_id": statusID, "user_id": status.UserID})
	h.audit(c, telemetry.LevelInfo, "status "+strconv.Itoa(statusID)+" deleted")
	c.JSON(http.StatusOK, gin.H{"message": "Status deleted successfully"})
}

// MyStatuses returns all of the caller's statuses with their viewers.
func (h *StatusHandler) MyStatuses(c *gin.Context) {
	statuses, err := h.Statuses.ListByUser(c.Request.Context(), c.GetInt("userID"))
	if err != nil {
		h.respondError(c, err, "failed to load statuses")
		return
	}
	for i := range statuses {
		statuses[i].StatusWithAuthor = h.presentStatus(statuses[i].StatusWithAuthor)
	}
	c.JSON(http.StatusOK, statuses)
}

// UpdatePrivacy replaces the caller's privacy setting.
func (h *StatusHandler) UpdatePrivacy(c *gin.Context) {
	var req privacyRequest
	if !bind(c, &req) {
		return
	}

	privacy, err := h.privacy(c, req)
	if err != nil {
		h.respondError(c, err, "could not update privacy")
		return
	}
	if err := h.Statuses.UpsertPrivacy(c.Request.Context(), privacy); err != nil {
		h.respondError(c, err, "could not update privacy")
		return
	}

	h.audit(c, telemetry.LevelInfo, "status privacy updated to "+string(privacy.Type))
	c.JSON(http.StatusOK, gin.H{"message": "Privacy settings updated successfully"})
}

