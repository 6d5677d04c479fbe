package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/leapstack-labs/leapunits/internal/state"
	"github.com/leapstack-labs/leapunits/pkg/definition"
	"github.com/leapstack-labs/leapunits/pkg/registry"
	"github.com/leapstack-labs/leapunits/pkg/units"
)

// ConvertRequest is the body of POST /api/convert.
type ConvertRequest struct {
	Value    float64            `json:"value"`
	From     string             `json:"from"`
	To       string             `json:"to"`
	Contexts []string           `json:"contexts,omitempty"`
	Params   map[string]float64 `json:"params,omitempty"`
}

// ConvertResponse is returned by both convert endpoints.
type ConvertResponse struct {
	Value    float64  `json:"value"`
	From     string   `json:"from"`
	To       string   `json:"to"`
	Result   float64  `json:"result"`
	Contexts []string `json:"contexts,omitempty"`
}

// UnitInfo describes one definition in GET /api/units.
type UnitInfo struct {
	Name       string   `json:"name"`
	Symbol     string   `json:"symbol,omitempty"`
	Aliases    []string `json:"aliases,omitempty"`
	Definition string   `json:"definition"`
}

// ContextInfo describes one context in GET /api/contexts.
type ContextInfo struct {
	Name     string             `json:"name"`
	Aliases  []string           `json:"aliases,omitempty"`
	Defaults map[string]float64 `json:"defaults,omitempty"`
	Active   bool               `json:"active"`
}

type errorResponse struct {
	Error  string          `json:"error"`
	Detail json.RawMessage `json:"detail,omitempty"`
}

type badRequestError struct{ msg string }

func (e *badRequestError) Error() string { return e.msg }

func badRequest(format string, args ...any) error {
	return &badRequestError{msg: fmt.Sprintf(format, args...)}
}

func (s *Server) handleConvertQuery(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	req := ConvertRequest{
		Value:    1,
		From:     q.Get("from"),
		To:       q.Get("to"),
		Contexts: q["context"],
	}
	if v := q.Get("value"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			s.writeError(w, badRequest("invalid value %q", v))
			return
		}
		req.Value = f
	}
	s.serveConvert(w, r, req)
}

func (s *Server) handleConvertJSON(w http.ResponseWriter, r *http.Request) {
	var req ConvertRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, badRequest("invalid request body: %v", err))
		return
	}
	s.serveConvert(w, r, req)
}

func (s *Server) serveConvert(w http.ResponseWriter, r *http.Request, req ConvertRequest) {
	if req.From == "" || req.To == "" {
		s.writeError(w, badRequest("both from and to are required"))
		return
	}
	result, err := s.convert(r.Context(), req)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ConvertResponse{
		Value:    req.Value,
		From:     req.From,
		To:       req.To,
		Result:   result,
		Contexts: req.Contexts,
	})
}

func (s *Server) convert(ctx context.Context, req ConvertRequest) (float64, error) {
	start := time.Now()
	var result float64
	err := s.holder.Do(func(reg *registry.Registry) error {
		run := func() error {
			var err error
			result, err = reg.Convert(req.Value, req.From, req.To)
			return err
		}
		if len(req.Contexts) == 0 {
			return run()
		}
		return reg.WithContext(req.Contexts, req.Params, run)
	})
	s.metrics.observeConversion(time.Since(start).Seconds(), err)
	s.record(ctx, req, result, err)
	return result, err
}

// record appends a conversion to the history. Failures are logged only.
func (s *Server) record(ctx context.Context, req ConvertRequest, result float64, convErr error) {
	if s.store == nil {
		return
	}
	entry := &state.Conversion{
		Magnitude: req.Value,
		Src:       req.From,
		Dst:       req.To,
		Contexts:  req.Contexts,
	}
	if convErr != nil {
		entry.Error = convErr.Error()
	} else {
		entry.Result = &result
	}
	if err := s.store.RecordConversion(ctx, entry); err != nil {
		s.logger.Warn("failed to record conversion", "error", err)
	}
}

func (s *Server) handleDimensionality(w http.ResponseWriter, r *http.Request) {
	expr := r.URL.Query().Get("expr")
	var dim units.Container
	err := s.holder.Do(func(reg *registry.Registry) error {
		var err error
		dim, err = reg.GetDimensionality(expr)
		return err
	})
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"expr":           expr,
		"dimensionality": dim.String(),
		"dimensions":     dim,
	})
}

func (s *Server) handleBase(w http.ResponseWriter, r *http.Request) {
	expr := r.URL.Query().Get("expr")
	var factor float64
	var base units.Container
	err := s.holder.Do(func(reg *registry.Registry) error {
		var err error
		factor, base, err = reg.GetBaseUnits(expr)
		return err
	})
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"expr":   expr,
		"factor": factor,
		"units":  base.String(),
		"parts":  base,
	})
}

func (s *Server) handleCompatible(w http.ResponseWriter, r *http.Request) {
	expr := r.URL.Query().Get("expr")
	var names []string
	err := s.holder.Do(func(reg *registry.Registry) error {
		var err error
		names, err = reg.GetCompatibleUnits(expr)
		return err
	})
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"expr": expr, "units": names})
}

func (s *Server) handleUnits(w http.ResponseWriter, r *http.Request) {
	kind := r.URL.Query().Get("kind")
	var out []UnitInfo
	err := s.holder.Do(func(reg *registry.Registry) error {
		var defs []definition.Definition
		switch kind {
		case "", "unit", "units":
			for _, u := range reg.Units() {
				defs = append(defs, u)
			}
		case "prefix", "prefixes":
			for _, p := range reg.Prefixes() {
				defs = append(defs, p)
			}
		case "dimension", "dimensions":
			for _, d := range reg.Dimensions() {
				defs = append(defs, d)
			}
		default:
			return badRequest("unknown kind %q (want units, prefixes or dimensions)", kind)
		}
		out = make([]UnitInfo, 0, len(defs))
		for _, d := range defs {
			info := UnitInfo{Name: d.Name(), Aliases: d.Aliases(), Definition: d.String()}
			if d.HasSymbol() {
				info.Symbol = d.Symbol()
			}
			out = append(out, info)
		}
		return nil
	})
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleContexts(w http.ResponseWriter, _ *http.Request) {
	var out []ContextInfo
	_ = s.holder.Do(func(reg *registry.Registry) error {
		active := make(map[string]bool)
		for _, name := range reg.ActiveContexts() {
			active[name] = true
		}
		for _, name := range reg.Contexts() {
			c, ok := reg.Context(name)
			if !ok {
				continue
			}
			out = append(out, ContextInfo{
				Name:     c.Name,
				Aliases:  c.Aliases,
				Defaults: c.Defaults,
				Active:   active[c.Name],
			})
		}
		return nil
	})
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleReload(w http.ResponseWriter, _ *http.Request) {
	if err := s.Reload(); err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"generation": s.holder.Generation()})
}

type defineRequest struct {
	Line string `json:"line"`
}

type definitionResponse struct {
	Name string `json:"name"`
	Kind string `json:"kind"`
	Line string `json:"line"`
}

func (s *Server) handleDefine(w http.ResponseWriter, r *http.Request) {
	var req defineRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, badRequest("invalid request body: %v", err))
		return
	}
	line := strings.TrimSpace(req.Line)
	if line == "" {
		s.writeError(w, badRequest("line is required"))
		return
	}

	def, err := definition.FromString(line)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if err := s.holder.Do(func(reg *registry.Registry) error { return reg.Define(def) }); err != nil {
		s.writeError(w, err)
		return
	}
	s.updateUnitsGauge()

	resp := definitionResponse{Name: def.Name(), Kind: def.Kind().String(), Line: line}
	if s.store != nil {
		if err := s.store.SaveDefinition(r.Context(), &state.Definition{Name: resp.Name, Kind: resp.Kind, Line: line}); err != nil {
			s.writeErrorStatus(w, http.StatusInternalServerError, err)
			return
		}
	}
	writeJSON(w, http.StatusCreated, resp)
}

func (s *Server) handleListDefinitions(w http.ResponseWriter, r *http.Request) {
	if !s.requireStore(w) {
		return
	}
	defs, err := s.store.ListDefinitions(r.Context())
	if err != nil {
		s.writeErrorStatus(w, http.StatusInternalServerError, err)
		return
	}
	out := make([]definitionResponse, 0, len(defs))
	for _, d := range defs {
		out = append(out, definitionResponse{Name: d.Name, Kind: d.Kind, Line: d.Line})
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleDeleteDefinition(w http.ResponseWriter, r *http.Request) {
	if !s.requireStore(w) {
		return
	}
	name := chi.URLParam(r, "name")
	if err := s.store.DeleteDefinition(r.Context(), name); err != nil {
		s.writeError(w, err)
		return
	}
	// a registry cannot forget a definition, so it is rebuilt without it
	if err := s.Reload(); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	if !s.requireStore(w) {
		return
	}
	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			s.writeError(w, badRequest("invalid limit %q", v))
			return
		}
		limit = n
	}
	entries, err := s.store.ListConversions(r.Context(), limit)
	if err != nil {
		s.writeErrorStatus(w, http.StatusInternalServerError, err)
		return
	}
	if entries == nil {
		entries = []*state.Conversion{}
	}
	writeJSON(w, http.StatusOK, entries)
}

func (s *Server) requireStore(w http.ResponseWriter) bool {
	if s.store == nil {
		s.writeErrorStatus(w, http.StatusNotFound, errors.New("state store is disabled"))
		return false
	}
	return true
}

// statusOf maps an error to an HTTP status.
func statusOf(err error) int {
	var bad *badRequestError
	switch {
	case errors.As(err, &bad):
		return http.StatusBadRequest
	case errors.Is(err, registry.ErrUnknownContext), errors.Is(err, state.ErrNotFound):
		return http.StatusNotFound
	}
	// everything else is a registry failure on well-formed input
	return http.StatusUnprocessableEntity
}

// typedError returns the first error of the units taxonomy in err's chain.
func typedError(err error) error {
	var (
		syntax *units.DefinitionSyntaxError
		redef  *units.RedefinitionError
		undef  *units.UndefinedUnitError
		dim    *units.DimensionalityError
		offset *units.OffsetUnitCalculusError
	)
	switch {
	case errors.As(err, &syntax):
		return syntax
	case errors.As(err, &redef):
		return redef
	case errors.As(err, &undef):
		return undef
	case errors.As(err, &dim):
		return dim
	case errors.As(err, &offset):
		return offset
	}
	return nil
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	s.writeErrorStatus(w, statusOf(err), err)
}

func (s *Server) writeErrorStatus(w http.ResponseWriter, status int, err error) {
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed", "error", err)
	}
	resp := errorResponse{Error: err.Error()}
	if typed := typedError(err); typed != nil {
		if detail, mErr := units.MarshalError(typed); mErr == nil {
			resp.Detail = detail
		}
	}
	writeJSON(w, status, resp)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
