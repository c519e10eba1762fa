package handler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/freelancehub/escrow-engine/internal/api/dto"
	"github.com/freelancehub/escrow-engine/internal/engine"
	"github.com/gin-gonic/gin"
)

// CreateJob handles POST /api/v1/jobs
// Locks funds and opens a new escrow job with the actor as client.
func (h *EscrowHandler) CreateJob(c *gin.Context) {
	var req dto.CreateJobRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	deadline, err := time.Parse(time.RFC3339, req.Deadline)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "deadline must be RFC3339"})
		return
	}

	params := engine.CreateParams{
		Client:     actor(c),
		Freelancer: engine.Identity(req.Freelancer),
		Arbiter:    engine.Identity(req.Arbiter),
		Asset: engine.Asset{
			Kind:  engine.AssetKind(req.AssetKind),
			Token: req.Token,
		},
		Amount:   req.Amount,
		Deadline: deadline,
		Attached: req.AttachedValue,
	}

	jobID, err := h.engine.CreateJob(c.Request.Context(), params)
	if err != nil {
		h.writeEngineError(c, err)
		return
	}

	h.logger.Info("Job created",
		slog.String("job_id", jobID),
		slog.String("client", string(params.Client)),
		slog.String("freelancer", req.Freelancer),
		slog.Uint64("amount", req.Amount),
	)

	c.JSON(http.StatusCreated, dto.CreateJobResponse{
		JobID:            jobID,
		Status:           engine.StatusCreated,
		ArbiterDefaulted: req.Arbiter == "",
	})
}

// GetJob handles GET /api/v1/jobs/:job_id
// Returns a live job; settled ids are permanently unknown.
func (h *EscrowHandler) GetJob(c *gin.Context) {
	job, err := h.engine.GetJob(c.Request.Context(), c.Param("job_id"))
	if err != nil {
		h.writeEngineError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.JobResponse{
		JobID:          job.ID,
		Client:         string(job.Client),
		Freelancer:     string(job.Freelancer),
		Arbiter:        string(job.Arbiter),
		Amount:         job.Amount,
		AssetKind:      string(job.Asset.Kind),
		Token:          job.Asset.Token,
		Deadline:       job.Deadline.Format(time.RFC3339),
		Status:         job.Status,
		DeliverableRef: job.DeliverableRef,
		CreatedAt:      job.CreatedAt.Format(time.RFC3339),
		UpdatedAt:      job.UpdatedAt.Format(time.RFC3339),
	})
}

// StartWork handles POST /api/v1/jobs/:job_id/start
func (h *EscrowHandler) StartWork(c *gin.Context) {
	if err := h.engine.StartWork(c.Request.Context(), c.Param("job_id"), actor(c)); err != nil {
		h.writeEngineError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": engine.StatusInProgress})
}

// SubmitWork handles POST /api/v1/jobs/:job_id/submit
func (h *EscrowHandler) SubmitWork(c *gin.Context) {
	var req dto.SubmitWorkRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
			return
		}
	}

	if err := h.engine.SubmitWork(c.Request.Context(), c.Param("job_id"), actor(c), req.DeliverableRef); err != nil {
		h.writeEngineError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": engine.StatusSubmitted})
}

// ApproveWork handles POST /api/v1/jobs/:job_id/approve
// Releases the locked amount to the freelancer and removes the job.
func (h *EscrowHandler) ApproveWork(c *gin.Context) {
	if err := h.engine.ApproveWork(c.Request.Context(), c.Param("job_id"), actor(c)); err != nil {
		h.writeEngineError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"settled": true})
}

// OpenDispute handles POST /api/v1/jobs/:job_id/dispute
func (h *EscrowHandler) OpenDispute(c *gin.Context) {
	var req dto.OpenDisputeRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
			return
		}
	}

	if err := h.engine.OpenDispute(c.Request.Context(), c.Param("job_id"), actor(c), req.Reason); err != nil {
		h.writeEngineError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": engine.StatusDisputed})
}

// ResolveDispute handles POST /api/v1/jobs/:job_id/resolve
// Releases the locked amount to the winner and removes the job.
func (h *EscrowHandler) ResolveDispute(c *gin.Context) {
	var req dto.ResolveDisputeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	if err := h.engine.ResolveDispute(c.Request.Context(), c.Param("job_id"), actor(c), engine.Identity(req.Winner)); err != nil {
		h.writeEngineError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"settled": true, "winner": req.Winner})
}

// CancelJob handles POST /api/v1/jobs/:job_id/cancel
// Returns the locked amount to the client and removes the job.
func (h *EscrowHandler) CancelJob(c *gin.Context) {
	if err := h.engine.CancelJob(c.Request.Context(), c.Param("job_id"), actor(c)); err != nil {
		h.writeEngineError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"settled": true})
}

// Refund handles POST /api/v1/jobs/:job_id/refund
// Settles a lapsed job back to the client. Any caller, after the deadline.
func (h *EscrowHandler) Refund(c *gin.Context) {
	if err := h.engine.Refund(c.Request.Context(), c.Param("job_id"), actor(c)); err != nil {
		h.writeEngineError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"settled": true})
}

// SetArbiter handles PUT /api/v1/policy/arbiters/:identity (admin only).
func (h *EscrowHandler) SetArbiter(c *gin.Context) {
	arbiter := engine.Identity(c.Param("identity"))
	if err := h.engine.SetArbiter(c.Request.Context(), actor(c), arbiter); err != nil {
		h.writeEngineError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"arbiter": string(arbiter)})
}

// RemoveArbiter handles DELETE /api/v1/policy/arbiters/:identity (admin only).
func (h *EscrowHandler) RemoveArbiter(c *gin.Context) {
	arbiter := engine.Identity(c.Param("identity"))
	if err := h.engine.RemoveArbiter(c.Request.Context(), actor(c), arbiter); err != nil {
		h.writeEngineError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// Deposit handles POST /api/v1/accounts/:identity/deposit
// Credits an identity's native ledger balance.
func (h *EscrowHandler) Deposit(c *gin.Context) {
	var req dto.DepositRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	identity := engine.Identity(c.Param("identity"))
	h.engine.Custody().Ledger().Deposit(identity, req.Amount)

	h.logger.Info("Deposit credited",
		slog.String("identity", string(identity)),
		slog.Uint64("amount", req.Amount),
	)

	c.JSON(http.StatusOK, dto.BalanceResponse{
		Identity: string(identity),
		Balance:  h.engine.Custody().Ledger().Balance(identity),
	})
}

// Balance handles GET /api/v1/accounts/:identity/balance
func (h *EscrowHandler) Balance(c *gin.Context) {
	identity := engine.Identity(c.Param("identity"))
	c.JSON(http.StatusOK, dto.BalanceResponse{
		Identity: string(identity),
		Balance:  h.engine.Custody().Ledger().Balance(identity),
	})
}
