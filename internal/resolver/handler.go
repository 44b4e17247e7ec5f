package resolver

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	apperrors "github.com/allisson/didregistry/internal/errors"
	"github.com/allisson/didregistry/internal/httputil"
)

// ContentTypeDIDJSON is the media type of DID documents.
const ContentTypeDIDJSON = "application/did+json"

// Handler exposes the resolver over HTTP.
type Handler struct {
	service *Service
	logger  *slog.Logger
}

// NewHandler creates a resolver Handler.
func NewHandler(service *Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// RegisterRoutes mounts the public did:web paths.
func (h *Handler) RegisterRoutes(router gin.IRoutes) {
	router.GET("/.well-known/did.json", h.PlatformHandler)
	router.GET("/:org/:label/did.json", h.DocumentHandler)
	router.GET("/:org/:label/credential.json", h.CredentialHandler)
}

// PlatformHandler serves the platform DID document.
// GET /.well-known/did.json
func (h *Handler) PlatformHandler(c *gin.Context) {
	artifact, err := h.service.Platform(c.Request.Context())
	h.respond(c, artifact, ContentTypeDIDJSON, err)
}

// DocumentHandler serves a published document, optionally at ?versionId=N.
// GET /:org/:label/did.json
func (h *Handler) DocumentHandler(c *gin.Context) {
	version := 0
	if raw := c.Query("versionId"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			httputil.HandleBadRequestGin(c, errors.New("versionId must be a positive integer"), h.logger)
			return
		}
		version = parsed
	}

	artifact, err := h.service.Document(c.Request.Context(), c.Param("org"), c.Param("label"), version)
	h.respond(c, artifact, ContentTypeDIDJSON, err)
}

// CredentialHandler serves the publication credential of a document.
// GET /:org/:label/credential.json
func (h *Handler) CredentialHandler(c *gin.Context) {
	artifact, err := h.service.Credential(c.Request.Context(), c.Param("org"), c.Param("label"))
	h.respond(c, artifact, "application/json", err)
}

func (h *Handler) respond(c *gin.Context, artifact *Artifact, contentType string, err error) {
	if err != nil {
		if apperrors.Is(err, ErrGone) {
			c.Header("Cache-Control", "no-cache")
			c.AbortWithStatusJSON(http.StatusGone, httputil.ErrorResponse{
				Error:   "deactivated",
				Message: "The DID has been deactivated",
			})
			return
		}
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.Header("ETag", artifact.ETag)
	c.Header("Cache-Control", cacheControl(artifact))
	if match := c.GetHeader("If-None-Match"); match != "" && match == artifact.ETag {
		c.Status(http.StatusNotModified)
		return
	}
	c.Data(http.StatusOK, contentType, artifact.Body)
}

func cacheControl(a *Artifact) string {
	value := "public, max-age=" + strconv.Itoa(int(a.MaxAge/time.Second))
	if a.Immutable {
		value += ", immutable"
	}
	return value
}
