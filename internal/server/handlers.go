package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Veraticus/spice-tally/internal/common"
	"github.com/Veraticus/spice-tally/internal/engine"
	"github.com/Veraticus/spice-tally/internal/model"
	"github.com/Veraticus/spice-tally/internal/pattern"
	"github.com/Veraticus/spice-tally/internal/profile"
	"github.com/Veraticus/spice-tally/internal/service"
)

// Defaults applied when a request omits its range.
const (
	DefaultStartDate = "2023-08-01"
	DefaultEndDate   = "2023-10-31"
)

var errModelUnavailable = errors.New("model strategy is not configured")

// AggregateRequest is the body of POST /api/v1/aggregate.
type AggregateRequest struct {
	Messages  []model.Message `json:"messages"`
	StartDate string          `json:"start_date"`
	EndDate   string          `json:"end_date"`
	Strategy  string          `json:"strategy" binding:"omitempty,oneof=pattern model"`
	FromStore bool            `json:"from_store"`
}

// AggregateResponse reports one profiled aggregation.
type AggregateResponse struct {
	Results       map[string]int        `json:"results"`
	Strategy      string                `json:"strategy"`
	Days          []model.DayResult     `json:"days"`
	Errors        []model.DayError      `json:"errors,omitempty"`
	Metrics       model.ResourceMetrics `json:"metrics"`
	Skipped       int                   `json:"skipped"`
	FetchedEmails int                   `json:"fetched_emails,omitempty"`
}

// CompareRequest is the body of POST /api/v1/compare.
type CompareRequest struct {
	Messages  []model.Message `json:"messages"`
	StartDate string          `json:"start_date"`
	EndDate   string          `json:"end_date"`
	FromStore bool            `json:"from_store"`
}

// FetchEmailsRequest is the body of POST /api/v1/fetch-emails.
// Credentials override the configured mailbox.
type FetchEmailsRequest struct {
	Server    string `json:"server" form:"server"`
	EmailUser string `json:"email_user" form:"email_user"`
	EmailPass string `json:"email_pass" form:"email_pass"`
	StartDate string `json:"start_date" form:"start_date"`
	EndDate   string `json:"end_date" form:"end_date"`
	Strategy  string `json:"strategy" form:"strategy" binding:"omitempty,oneof=pattern model"`
	Save      bool   `json:"save" form:"save"`
}

// handleAggregate counts one strategy over the request range. Without
// start_date and end_date the range is DefaultStartDate..DefaultEndDate.
func (s *Server) handleAggregate(c *gin.Context) {
	var req AggregateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.writeError(c, http.StatusBadRequest, err)
		return
	}

	r, err := rangeOrDefault(req.StartDate, req.EndDate)
	if err != nil {
		s.writeError(c, statusFor(err), err)
		return
	}

	ctx := c.Request.Context()
	messages, err := s.resolveMessages(ctx, req.Messages, req.FromStore, &r)
	if err != nil {
		s.writeError(c, statusFor(err), err)
		return
	}

	resp, err := s.aggregate(ctx, req.Strategy, messages, r)
	if err != nil {
		s.writeError(c, statusFor(err), err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// handleCompare profiles both strategies. Unlike aggregate, a request without
// start_date and end_date spans the earliest and latest message dates instead
// of the default range; a single bound is completed from the default range.
func (s *Server) handleCompare(c *gin.Context) {
	var req CompareRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.writeError(c, http.StatusBadRequest, err)
		return
	}
	if s.opts.Model == nil {
		s.writeError(c, http.StatusServiceUnavailable, errModelUnavailable)
		return
	}

	ctx := c.Request.Context()

	var bounds *model.DateRange
	if req.StartDate != "" || req.EndDate != "" {
		r, err := rangeOrDefault(req.StartDate, req.EndDate)
		if err != nil {
			s.writeError(c, statusFor(err), err)
			return
		}
		bounds = &r
	}

	messages, err := s.resolveMessages(ctx, req.Messages, req.FromStore, bounds)
	if err != nil {
		s.writeError(c, statusFor(err), err)
		return
	}

	var r model.DateRange
	if bounds != nil {
		r = *bounds
	} else if r, err = model.SpanOf(messages); err != nil {
		s.writeError(c, statusFor(err), err)
		return
	}

	comparer := engine.NewComparer(s.opts.Pattern, s.opts.Model, s.opts.Profiler, s.engineOptions()...)
	report, err := comparer.Compare(ctx, messages, r)
	if err != nil {
		s.writeError(c, statusFor(err), err)
		return
	}
	c.JSON(http.StatusOK, report)
}

func (s *Server) handleFetchEmails(c *gin.Context) {
	var req FetchEmailsRequest
	// Every field is optional; an empty body uses the configured mailbox.
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBind(&req); err != nil {
			s.writeError(c, http.StatusBadRequest, err)
			return
		}
	}

	r, err := rangeOrDefault(req.StartDate, req.EndDate)
	if err != nil {
		s.writeError(c, statusFor(err), err)
		return
	}

	fetcher, err := s.fetcherFor(req)
	if err != nil {
		s.writeError(c, statusFor(err), err)
		return
	}

	ctx := c.Request.Context()
	messages, err := fetcher.Fetch(ctx, r.Start)
	if err != nil {
		s.writeError(c, statusFor(err), err)
		return
	}
	if len(messages) == 0 {
		s.writeError(c, http.StatusBadRequest, fmt.Errorf("%w: no emails found", common.ErrNoMessages))
		return
	}

	if req.Save && s.opts.Store != nil {
		inserted, err := s.opts.Store.SaveMessages(ctx, messages)
		if err != nil {
			s.logger.Warn("failed to store fetched emails", "error", err)
		} else {
			s.logger.Info("stored fetched emails", "inserted", inserted)
		}
	}

	resp, err := s.aggregate(ctx, req.Strategy, messages, r)
	if err != nil {
		s.writeError(c, statusFor(err), err)
		return
	}
	resp.FetchedEmails = len(messages)
	c.JSON(http.StatusOK, resp)
}

func (s *Server) aggregate(ctx context.Context, strategy string, messages []model.Message, r model.DateRange) (AggregateResponse, error) {
	if strategy == "" {
		strategy = pattern.StrategyName
	}

	classifier, err := engine.SelectStrategy(strategy, s.opts.Pattern, s.opts.Model)
	if err != nil {
		if s.opts.Model == nil && strategy != pattern.StrategyName {
			return AggregateResponse{}, errModelUnavailable
		}
		return AggregateResponse{}, err
	}

	agg := engine.NewAggregator(classifier, s.engineOptions()...)
	result, metrics, err := profile.Run(ctx, s.opts.Profiler, func(ctx context.Context) (model.AggregateResult, error) {
		return agg.Aggregate(ctx, messages, r)
	})
	if err != nil {
		return AggregateResponse{}, err
	}

	return AggregateResponse{
		Results:  result.Counts,
		Strategy: result.Strategy,
		Days:     result.Days,
		Errors:   result.Errors,
		Metrics:  metrics,
		Skipped:  result.Skipped,
	}, nil
}

// resolveMessages returns the inline messages, or the stored ones when requested.
func (s *Server) resolveMessages(ctx context.Context, inline []model.Message, fromStore bool, bounds *model.DateRange) ([]model.Message, error) {
	if !fromStore {
		return inline, nil
	}
	if s.opts.Store == nil {
		return nil, fmt.Errorf("%w: no message store configured", common.ErrMissingConfig)
	}

	filter := service.MessageFilter{}
	if bounds != nil {
		filter.StartDate = &bounds.Start
		filter.EndDate = &bounds.End
	}

	stored, err := s.opts.Store.GetMessages(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to load stored messages: %w", err)
	}
	return append(stored, inline...), nil
}

func (s *Server) fetcherFor(req FetchEmailsRequest) (service.MessageSource, error) {
	if req.EmailUser != "" || req.EmailPass != "" {
		if s.opts.NewFetcher == nil {
			return nil, fmt.Errorf("%w: per-request mail credentials", common.ErrMissingConfig)
		}
		return s.opts.NewFetcher(req.Server, req.EmailUser, req.EmailPass)
	}
	if s.opts.Fetcher == nil {
		return nil, fmt.Errorf("%w: imap credentials", common.ErrMissingConfig)
	}
	return s.opts.Fetcher, nil
}

func (s *Server) engineOptions() []engine.Option {
	return append([]engine.Option{engine.WithLogger(s.logger)}, s.opts.EngineOptions...)
}

func rangeOrDefault(start, end string) (model.DateRange, error) {
	if start == "" {
		start = DefaultStartDate
	}
	if end == "" {
		end = DefaultEndDate
	}
	return model.NewDateRange(start, end)
}

// statusFor maps errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, model.ErrInvalidRange),
		errors.Is(err, common.ErrUnknownStrategy),
		errors.Is(err, common.ErrNoMessages):
		return http.StatusBadRequest
	case errors.Is(err, errModelUnavailable),
		errors.Is(err, common.ErrMissingConfig):
		return http.StatusServiceUnavailable
	case errors.Is(err, common.ErrMailTransport):
		return http.StatusBadGateway
	case errors.Is(err, context.Canceled),
		errors.Is(err, context.DeadlineExceeded):
		return http.StatusRequestTimeout
	default:
		return http.StatusInternalServerError
	}
}
