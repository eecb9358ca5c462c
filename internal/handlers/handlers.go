package handlers

import (
	"errors"
	"mime/multipart"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/jonboulle/clockwork"
	"github.com/sirupsen/logrus"

	"messenger-service/internal/auth"
	"messenger-service/internal/models"
	"messenger-service/internal/observability"
	"messenger-service/internal/repositories"
	"messenger-service/internal/storage"
	"messenger-service/internal/telemetry"
	"messenger-service/internal/ws"
)

// Deps are the collaborators shared by the HTTP handlers.
type Deps struct {
	Users    repositories.UserRepository
	Chats    repositories.ChatRepository
	Messages repositories.MessageRepository
	Statuses repositories.StatusRepository
	Media    storage.MediaStore
	Hub      *ws.Hub
	Tokens   *auth.TokenIssuer
	Audit    *telemetry.AuditEmitter
	Clock    clockwork.Clock
	Logger   logrus.FieldLogger
}

const unauthorizedMessage = "unauthorized"

// forbid answers 403 without detail and records the denial.
func (d Deps) forbid(c *gin.Context, action string) {
	d.audit(c, telemetry.LevelWarn, action+" denied")
	c.JSON(http.StatusForbidden, gin.H{"error": unauthorizedMessage})
}

func respondValidation(c *gin.Context, verr *models.ValidationError) {
	c.JSON(http.StatusUnprocessableEntity, gin.H{"message": "validation failed", "errors": verr.Fields})
}

// respondError maps domain errors that are not authorization outcomes.
func (d Deps) respondError(c *gin.Context, err error, fallback string) {
	var verr *models.ValidationError
	switch {
	case errors.As(err, &verr):
		respondValidation(c, verr)
	case errors.Is(err, repositories.ErrChatNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "chat not found"})
	case errors.Is(err, repositories.ErrStatusNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "status not found"})
	case errors.Is(err, repositories.ErrUserNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "user not found"})
	default:
		d.Logger.WithError(err).WithField("request_id", requestIDFromContext(c)).Error(fallback)
		c.JSON(http.StatusInternalServerError, gin.H{"error": fallback})
	}
}

func idParam(c *gin.Context, name, label string) (int, bool) {
	id, err := strconv.Atoi(c.Param(name))
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid " + label + " id"})
		return 0, false
	}
	return id, true
}

// checkUsersExist fails with a validation error naming field when any id is unknown.
func (d Deps) checkUsersExist(c *gin.Context, field string, ids []int) error {
	if len(ids) == 0 {
		return nil
	}
	missing, err := d.Users.MissingUserIDs(c.Request.Context(), ids)
	if err != nil {
		return err
	}
	if len(missing) == 0 {
		return nil
	}
	verr := &models.ValidationError{}
	for _, id := range missing {
		verr.Add(field, "user "+strconv.Itoa(id)+" does not exist")
	}
	return verr
}

func (d Deps) mediaURL(key *string) *string {
	if key == nil || *key == "" {
		return key
	}
	url := d.Media.URL(*key)
	return &url
}

func (d Deps) deleteMediaBestEffort(c *gin.Context, keys ...string) {
	for _, key := range keys {
		if key == "" {
			continue
		}
		if err := d.Media.Delete(c.Request.Context(), key); err != nil {
			d.Logger.WithError(err).WithField("key", key).Warn("media cleanup failed")
		}
	}
}

// formFile returns the uploaded file, or nil when the request carries none.
func formFile(c *gin.Context, field string) (*multipart.FileHeader, error) {
	if c.ContentType() != binding.MIMEMultipartPOSTForm {
		return nil, nil
	}
	fh, err := c.FormFile(field)
	if errors.Is(err, http.ErrMissingFile) {
		return nil, nil
	}
	return fh, err
}

func (d Deps) storeUpload(c *gin.Context, dir string, fh *multipart.FileHeader) (string, error) {
	f, err := fh.Open()
	if err != nil {
		return "", err
	}
	defer f.Close()
	return d.Media.Put(c.Request.Context(), dir, fh.Filename, f)
}

func (d Deps) publish(c *gin.Context, eventType, eventName string, payload any) {
	ctx := c.Request.Context()
	envelope := observability.NewEnvelope(ctx, eventType, eventName, requestIDFromContext(c), d.Clock.Now(), payload)
	if err := observability.PublishEvent(ctx, envelope); err != nil {
		d.Logger.WithError(err).WithField("event", eventName).Warn("event publish failed")
	}
}

func (d Deps) broadcast(chatID int, event models.ChatEvent) {
	if d.Hub != nil {
		d.Hub.Broadcast(chatID, event)
	}
}
