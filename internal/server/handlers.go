package server

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Iron-Ham/agentops/internal/agent"
	"github.com/Iron-Ham/agentops/internal/operation"
	"github.com/Iron-Ham/agentops/internal/pipeline"
	"github.com/Iron-Ham/agentops/internal/workflow"
)

type errorResponse struct {
	Error string `json:"error"`
}

type okResponse struct {
	OK bool `json:"ok"`
}

func abortWithError(c *gin.Context, status int, err error) {
	c.AbortWithStatusJSON(status, errorResponse{Error: err.Error()})
}

// PhaseRequest describes one declarative phase.
type PhaseRequest struct {
	Kind     string         `json:"kind" yaml:"kind"`
	Label    string         `json:"label,omitempty" yaml:"label,omitempty"`
	Prompt   string         `json:"prompt,omitempty" yaml:"prompt,omitempty"`
	Cwd      string         `json:"cwd,omitempty" yaml:"cwd,omitempty"`
	Model    string         `json:"model,omitempty" yaml:"model,omitempty"`
	MaxTurns int            `json:"maxTurns,omitempty" yaml:"max_turns,omitempty"`
	Children []PhaseRequest `json:"children,omitempty" yaml:"children,omitempty"`
}

// StartRequest is the body of POST /api/operations.
type StartRequest struct {
	Type      string         `json:"type" yaml:"type"`
	Workspace string         `json:"workspace" yaml:"workspace"`
	Phases    []PhaseRequest `json:"phases" yaml:"phases"`
}

func (p PhaseRequest) options() agent.Options {
	return agent.Options{Cwd: p.Cwd, Model: p.Model, MaxTurns: p.MaxTurns}
}

// BuildPhases converts declarative phases. Only single and group phases can
// be declared; function phases come from built-in workflows. Prompts are
// checked when the pipeline starts.
func BuildPhases(reqs []PhaseRequest) ([]pipeline.Phase, error) {
	phases := make([]pipeline.Phase, 0, len(reqs))
	for i, r := range reqs {
		switch pipeline.Kind(r.Kind) {
		case pipeline.KindSingle, "":
			phases = append(phases, pipeline.SinglePhase{Label: r.Label, Prompt: r.Prompt, Options: r.options()})
		case pipeline.KindGroup:
			children := make([]pipeline.GroupChild, 0, len(r.Children))
			for _, ch := range r.Children {
				children = append(children, pipeline.GroupChild{Label: ch.Label, Prompt: ch.Prompt, Options: ch.options()})
			}
			phases = append(phases, pipeline.GroupPhase{Children: children})
		default:
			return nil, fmt.Errorf("%w: phase %d has unsupported kind %q", pipeline.ErrInvalidPhase, i, r.Kind)
		}
	}
	return phases, nil
}

func (s *Server) handleStartOperation(c *gin.Context) {
	var req StartRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, fmt.Errorf("invalid request body: %w", err))
		return
	}
	if req.Type == "" {
		req.Type = "pipeline"
	}

	phases, err := BuildPhases(req.Phases)
	if err != nil {
		abortWithError(c, http.StatusBadRequest, err)
		return
	}
	s.start(c, req.Type, req.Workspace, phases)
}

type workflowRequest struct {
	Workspace   string `json:"workspace"`
	Draft       *bool  `json:"draft"`
	Instruction string `json:"instruction"`
	Description string `json:"description"`
}

func (r workflowRequest) options() []workflow.Option {
	opts := []workflow.Option{
		workflow.WithInstruction(r.Instruction),
		workflow.WithDescription(r.Description),
	}
	if r.Draft != nil {
		opts = append(opts, workflow.WithDraft(*r.Draft))
	}
	return opts
}

func (s *Server) handleListWorkflows(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"workflows": s.catalog.Names()})
}

func (s *Server) handleStartWorkflow(c *gin.Context) {
	var req workflowRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, fmt.Errorf("invalid request body: %w", err))
		return
	}

	plan, err := s.catalog.Build(c.Param("name"), req.Workspace, req.options()...)
	switch {
	case errors.Is(err, workflow.ErrUnknownWorkflow):
		abortWithError(c, http.StatusNotFound, err)
		return
	case err != nil:
		abortWithError(c, http.StatusBadRequest, err)
		return
	}
	s.start(c, plan.Type, plan.Workspace, plan.Phases)
}

func (s *Server) start(c *gin.Context, opType, workspace string, phases []pipeline.Phase) {
	op, err := s.orch.StartPipeline(c.Request.Context(), opType, workspace, phases)
	switch {
	case errors.Is(err, pipeline.ErrInvalidPhase):
		abortWithError(c, http.StatusBadRequest, err)
		return
	case errors.Is(err, pipeline.ErrShuttingDown):
		abortWithError(c, http.StatusServiceUnavailable, err)
		return
	case err != nil:
		s.logger.Error("failed to start operation", "type", opType, "error", err)
		abortWithError(c, http.StatusInternalServerError, err)
		return
	}
	c.JSON(http.StatusCreated, op)
}

func (s *Server) handleListOperations(c *gin.Context) {
	ops := s.registry.List()
	if c.Query("status") == string(operation.StatusRunning) {
		ops = s.registry.Running()
	}
	if ops == nil {
		ops = []operation.Operation{}
	}
	c.JSON(http.StatusOK, gin.H{"operations": ops})
}

func (s *Server) handleGetOperation(c *gin.Context) {
	op, ok := s.registry.Get(c.Param("id"))
	if !ok {
		abortWithError(c, http.StatusNotFound, operation.ErrNotFound)
		return
	}
	c.JSON(http.StatusOK, op)
}

func (s *Server) handleOperationEvents(c *gin.Context) {
	events, err := s.registry.Events(c.Param("id"))
	if err != nil {
		abortWithError(c, http.StatusNotFound, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"events": events})
}

type killRequest struct {
	OperationID string `json:"operationId" binding:"required"`
}

func (s *Server) handleKill(c *gin.Context) {
	var req killRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, errors.New("operationId is required"))
		return
	}
	if err := s.registry.Cancel(req.OperationID); err != nil {
		abortWithError(c, http.StatusNotFound, errors.New("operation not found or not running"))
		return
	}
	c.JSON(http.StatusOK, okResponse{OK: true})
}

type answerRequest struct {
	OperationID string            `json:"operationId" binding:"required"`
	ToolUseID   string            `json:"toolUseId" binding:"required"`
	Answers     map[string]string `json:"answers" binding:"required"`
}

func (s *Server) handleAnswer(c *gin.Context) {
	var req answerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, errors.New("operationId, toolUseId, and answers are required"))
		return
	}

	err := s.registry.SubmitAnswer(req.OperationID, req.ToolUseID, req.Answers)
	s.metrics.AnswerSubmitted(err == nil)
	if err != nil {
		s.logger.Debug("answer rejected", "operation_id", req.OperationID, "question_id", req.ToolUseID, "error", err)
		abortWithError(c, http.StatusNotFound, errors.New("operation not found, not running, or no pending question"))
		return
	}
	c.JSON(http.StatusOK, okResponse{OK: true})
}
