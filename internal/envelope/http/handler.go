// Package http provides HTTP handlers for the envelope-encryption control
// surface: key lifecycle (create/rotate/transfer) and data encryption and
// decryption (single item, batch, and multi-batch).
package http

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/cripta/envelopesvc/internal/custodian"
	"github.com/cripta/envelopesvc/internal/envelope/domain"
	"github.com/cripta/envelopesvc/internal/envelope/http/dto"
	"github.com/cripta/envelopesvc/internal/envelope/usecase"
	"github.com/cripta/envelopesvc/internal/httputil"
	"github.com/cripta/envelopesvc/internal/tenant"
	customValidation "github.com/cripta/envelopesvc/internal/validation"
)

// Handler wires incoming HTTP requests to the envelope Engine. The tenant
// State for the current request is expected to already be resolved onto the
// gin.Context by the tenant-resolution middleware (see TenantMiddleware).
type Handler struct {
	engine *usecase.Engine
	logger *slog.Logger
}

// NewHandler builds a Handler. logger may be nil, in which case slog's
// default logger is used.
func NewHandler(engine *usecase.Engine, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{engine: engine, logger: logger}
}

// tenantStateKey is the gin.Context key TenantMiddleware stores the
// resolved tenant.State under.
const tenantStateKey = "envelope.tenantState"

// TenantMiddleware resolves the x-tenant-id header against router and
// stores the tenant.State on the request context, or aborts with 400 if the
// header is missing or unknown.
func TenantMiddleware(router *tenant.Router, logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		id := tenant.ID(c.GetHeader("x-tenant-id"))
		state, err := router.Lookup(id)
		if err != nil {
			httputil.HandleErrorGin(c, err, logger)
			return
		}
		c.Set(tenantStateKey, state)
		c.Next()
	}
}

func tenantStateFrom(c *gin.Context) *tenant.State {
	return c.MustGet(tenantStateKey).(*tenant.State)
}

// custodianFrom parses the request's optional custodian credentials. An
// absent Authorization header is fine; a present-but-malformed one is a
// client error the caller must surface as 400.
func custodianFrom(c *gin.Context) (custodian.Custodian, error) {
	return custodian.FromHeader(c.GetHeader("Authorization"))
}

func (h *Handler) bindIdentifier(c *gin.Context, dtoIdentifier dto.IdentifierDTO) (domain.Identifier, bool) {
	id, err := dtoIdentifier.ToDomain()
	if err != nil {
		httputil.HandleValidationErrorGin(c, customValidation.WrapValidationError(err), h.logger)
		return domain.Identifier{}, false
	}
	return id, true
}

// Create handles POST /key/create.
func (h *Handler) Create(c *gin.Context) {
	var req dto.CreateDataKeyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.HandleBadRequestGin(c, err, h.logger)
		return
	}
	if err := req.Validate(); err != nil {
		httputil.HandleValidationErrorGin(c, customValidation.WrapValidationError(err), h.logger)
		return
	}
	id, ok := h.bindIdentifier(c, req.Identifier)
	if !ok {
		return
	}

	cust, err := custodianFrom(c)
	if err != nil {
		httputil.HandleBadRequestGin(c, err, h.logger)
		return
	}

	state := tenantStateFrom(c)
	created, err := h.engine.Create(c.Request.Context(), state, id, cust)
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}
	c.JSON(http.StatusOK, dto.MapCreatedKey(created))
}

// Rotate handles POST /key/rotate.
func (h *Handler) Rotate(c *gin.Context) {
	var req dto.RotateDataKeyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.HandleBadRequestGin(c, err, h.logger)
		return
	}
	if err := req.Validate(); err != nil {
		httputil.HandleValidationErrorGin(c, customValidation.WrapValidationError(err), h.logger)
		return
	}
	id, ok := h.bindIdentifier(c, req.Identifier)
	if !ok {
		return
	}

	cust, err := custodianFrom(c)
	if err != nil {
		httputil.HandleBadRequestGin(c, err, h.logger)
		return
	}

	state := tenantStateFrom(c)
	created, err := h.engine.Rotate(c.Request.Context(), state, id, cust)
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}
	c.JSON(http.StatusOK, dto.MapCreatedKey(created))
}

// Transfer handles POST /key/transfer.
func (h *Handler) Transfer(c *gin.Context) {
	var req dto.TransferKeyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.HandleBadRequestGin(c, err, h.logger)
		return
	}
	if err := req.Validate(); err != nil {
		httputil.HandleValidationErrorGin(c, customValidation.WrapValidationError(err), h.logger)
		return
	}
	id, ok := h.bindIdentifier(c, req.Identifier)
	if !ok {
		return
	}
	rawKey, err := req.DecodeKey()
	if err != nil {
		httputil.HandleValidationErrorGin(c, err, h.logger)
		return
	}

	cust, err := custodianFrom(c)
	if err != nil {
		httputil.HandleBadRequestGin(c, err, h.logger)
		return
	}

	state := tenantStateFrom(c)
	created, err := h.engine.Transfer(c.Request.Context(), state, id, rawKey, cust)
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}
	c.JSON(http.StatusOK, dto.MapCreatedKey(created))
}

// Encrypt handles POST /data/encrypt, dispatching on the data field's JSON
// shape to Single, Batch, or MultiBatch.
func (h *Handler) Encrypt(c *gin.Context) {
	var req dto.EncryptDataRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.HandleBadRequestGin(c, err, h.logger)
		return
	}
	if err := req.Validate(); err != nil {
		httputil.HandleValidationErrorGin(c, customValidation.WrapValidationError(err), h.logger)
		return
	}
	id, ok := h.bindIdentifier(c, req.Identifier)
	if !ok {
		return
	}
	shape, err := req.Shape()
	if err != nil {
		httputil.HandleValidationErrorGin(c, err, h.logger)
		return
	}

	cust, err := custodianFrom(c)
	if err != nil {
		httputil.HandleBadRequestGin(c, err, h.logger)
		return
	}

	state := tenantStateFrom(c)
	ctx := c.Request.Context()

	switch shape {
	case dto.ShapeSingle:
		plaintext, err := req.AsSingle()
		if err != nil {
			httputil.HandleValidationErrorGin(c, err, h.logger)
			return
		}
		encrypted, err := h.engine.EncryptSingle(ctx, state, id, cust, plaintext)
		if err != nil {
			httputil.HandleErrorGin(c, err, h.logger)
			return
		}
		c.JSON(http.StatusOK, dto.MapEncryptionResponseSingle(id, encrypted))
	case dto.ShapeBatch:
		group, err := req.AsBatch()
		if err != nil {
			httputil.HandleValidationErrorGin(c, err, h.logger)
			return
		}
		encrypted, err := h.engine.EncryptBatch(ctx, state, id, cust, group)
		if err != nil {
			httputil.HandleErrorGin(c, err, h.logger)
			return
		}
		c.JSON(http.StatusOK, dto.MapEncryptionResponseBatch(id, encrypted))
	case dto.ShapeMultiBatch:
		groups, err := req.AsMultiBatch()
		if err != nil {
			httputil.HandleValidationErrorGin(c, err, h.logger)
			return
		}
		encrypted, err := h.engine.EncryptMultiBatch(ctx, state, id, cust, groups)
		if err != nil {
			httputil.HandleErrorGin(c, err, h.logger)
			return
		}
		c.JSON(http.StatusOK, dto.MapEncryptionResponseMultiBatch(id, encrypted))
	}
}

// Decrypt handles POST /data/decrypt, dispatching on the data field's JSON
// shape the same way Encrypt does.
func (h *Handler) Decrypt(c *gin.Context) {
	var req dto.DecryptionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.HandleBadRequestGin(c, err, h.logger)
		return
	}
	if err := req.Validate(); err != nil {
		httputil.HandleValidationErrorGin(c, customValidation.WrapValidationError(err), h.logger)
		return
	}
	id, ok := h.bindIdentifier(c, req.Identifier)
	if !ok {
		return
	}
	shape, err := req.Shape()
	if err != nil {
		httputil.HandleValidationErrorGin(c, err, h.logger)
		return
	}

	cust, err := custodianFrom(c)
	if err != nil {
		httputil.HandleBadRequestGin(c, err, h.logger)
		return
	}

	state := tenantStateFrom(c)
	ctx := c.Request.Context()

	switch shape {
	case dto.ShapeSingle:
		encrypted, err := req.AsSingle()
		if err != nil {
			httputil.HandleValidationErrorGin(c, err, h.logger)
			return
		}
		plaintext, err := h.engine.DecryptSingle(ctx, state, id, cust, encrypted)
		if err != nil {
			httputil.HandleErrorGin(c, err, h.logger)
			return
		}
		c.JSON(http.StatusOK, dto.MapDecryptionResponseSingle(id, plaintext))
	case dto.ShapeBatch:
		group, err := req.AsBatch()
		if err != nil {
			httputil.HandleValidationErrorGin(c, err, h.logger)
			return
		}
		plaintext, err := h.engine.DecryptBatch(ctx, state, id, cust, group)
		if err != nil {
			httputil.HandleErrorGin(c, err, h.logger)
			return
		}
		c.JSON(http.StatusOK, dto.MapDecryptionResponseBatch(id, plaintext))
	case dto.ShapeMultiBatch:
		groups, err := req.AsMultiBatch()
		if err != nil {
			httputil.HandleValidationErrorGin(c, err, h.logger)
			return
		}
		plaintext, err := h.engine.DecryptMultiBatch(ctx, state, id, cust, groups)
		if err != nil {
			httputil.HandleErrorGin(c, err, h.logger)
			return
		}
		c.JSON(http.StatusOK, dto.MapDecryptionResponseMultiBatch(id, plaintext))
	}
}

// RegisterRoutes mounts the envelope control surface's routes under r.
func (h *Handler) RegisterRoutes(r gin.IRoutes) {
	r.POST("/key/create", h.Create)
	r.POST("/key/rotate", h.Rotate)
	r.POST("/key/transfer", h.Transfer)
	r.POST("/data/encrypt", h.Encrypt)
	r.POST("/data/decrypt", h.Decrypt)
}
