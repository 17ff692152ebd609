package api

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"churn-predictor/backend/internal/advice"
	"churn-predictor/backend/internal/artifact"
	"churn-predictor/backend/internal/features"
	"churn-predictor/backend/internal/scoring"
	"churn-predictor/backend/internal/store"
	"churn-predictor/backend/internal/util"
)

// Failure kinds used for metrics labels and incident records.
const (
	kindInvalidField    = "invalid_field"
	kindUnknownCategory = "unknown_category"
	kindSchemaMismatch  = store.IncidentSchemaMismatch
	kindInference       = store.IncidentInference
)

// predictError carries the request id and classification of a failed prediction.
type predictError struct {
	requestID string
	status    int
	kind      string
	err       error
}

func (e *predictError) Error() string { return e.err.Error() }
func (e *predictError) Unwrap() error { return e.err }

func (s *Server) handlePredict(c *gin.Context) {
	var in features.FormInput
	if err := c.ShouldBindJSON(&in); err != nil {
		s.metrics.ObserveFailure(kindInvalidField)
		s.renderError(c, http.StatusBadRequest, fmt.Errorf("decode request: %w", err))
		return
	}

	resp, err := s.predict(c.Request.Context(), in)
	if err != nil {
		s.renderPredictError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// predict assembles, scores and advises on one form input.
func (s *Server) predict(ctx context.Context, in features.FormInput) (PredictionResponse, error) {
	timer := util.StartTimer()
	requestID := uuid.NewString()

	record, result, err := s.score(in, requestID)
	if err != nil {
		return PredictionResponse{}, err
	}

	adv, err := s.advisor.Advise(ctx, advice.Input{Record: record, Result: result})
	if err != nil {
		logrus.WithError(err).WithField("request_id", requestID).Warn("advice unavailable")
		adv = advice.Advice{Band: advice.Band(result.ChurnProbability)}
	}

	elapsed := timer.Elapsed()
	s.metrics.ObservePrediction(result.ChurnLabel, result.ChurnProbability, elapsed)
	logrus.WithFields(logrus.Fields{
		"request_id":  requestID,
		"probability": result.ChurnProbability,
		"churn":       result.ChurnLabel,
		"band":        adv.Band,
		"duration":    elapsed,
	}).Debug("scored customer")

	return PredictionResponse{
		RequestID:          requestID,
		ChurnProbability:   result.ChurnProbability,
		ProbabilityDisplay: percent(result.ChurnProbability),
		ChurnLabel:         result.ChurnLabel,
		ChurnStatus:        churnStatus(result.ChurnLabel),
		Threshold:          result.Threshold,
		RiskBand:           adv.Band,
		Recommendation:     adv.Recommendation,
		AdviceSource:       adv.Source,
		TenureMonths:       record.TenureMonths,
		BundleVersion:      s.bundle.Version(),
		ProcessingTimeMs:   timer.ElapsedMs(),
	}, nil
}

// score runs the assembler and pipeline, classifying any failure.
func (s *Server) score(in features.FormInput, requestID string) (features.CustomerRecord, scoring.Result, error) {
	record, err := features.Assemble(in, s.clock())
	if err != nil {
		return record, scoring.Result{}, s.classify(requestID, err)
	}
	result, err := scoring.Score(s.bundle, record)
	if err != nil {
		return record, scoring.Result{}, s.classify(requestID, err)
	}
	return record, result, nil
}

// classify maps pipeline errors to HTTP status codes and raises operator
// incidents for failures caused by the deployment rather than the caller.
func (s *Server) classify(requestID string, err error) error {
	perr := &predictError{requestID: requestID, err: err}
	switch {
	case errors.Is(err, features.ErrInvalidField):
		perr.status, perr.kind = http.StatusBadRequest, kindInvalidField
	case errors.Is(err, artifact.ErrUnknownCategory):
		perr.status, perr.kind = http.StatusUnprocessableEntity, kindUnknownCategory
	case errors.Is(err, artifact.ErrSchemaMismatch):
		perr.status, perr.kind = http.StatusInternalServerError, kindSchemaMismatch
	default:
		perr.status, perr.kind = http.StatusInternalServerError, kindInference
	}
	s.metrics.ObserveFailure(perr.kind)
	if perr.status >= http.StatusInternalServerError {
		s.raiseIncident(perr)
	}
	return perr
}

func (s *Server) raiseIncident(perr *predictError) {
	logrus.WithError(perr.err).WithFields(logrus.Fields{
		"request_id":      perr.requestID,
		"kind":            perr.kind,
		"bundle_version":  s.bundle.Version(),
		"bundle_checksum": s.bundle.Checksum(),
	}).Error("prediction failed: bundle and assembler disagree or classifier failed")

	incident := &store.Incident{
		Kind:           perr.kind,
		Message:        perr.err.Error(),
		RequestID:      perr.requestID,
		BundleVersion:  s.bundle.Version(),
		BundleChecksum: s.bundle.Checksum(),
	}
	if err := s.db.RecordIncident(incident); err != nil {
		logrus.WithError(err).Warn("record incident")
	}
	dto := IncidentFromModel(*incident)
	s.notifier.Broadcast(IncidentEvent{Type: "incident", Incident: &dto})
}

func (s *Server) renderPredictError(c *gin.Context, err error) {
	var perr *predictError
	if !errors.As(err, &perr) {
		s.renderError(c, http.StatusInternalServerError, err)
		return
	}
	body := gin.H{"error": perr.Error(), "kind": perr.kind, "request_id": perr.requestID}
	var fieldErr *features.FieldError
	if errors.As(err, &fieldErr) {
		body["field"] = fieldErr.Field
	}
	c.JSON(perr.status, body)
}

var batchResultHeaders = []string{"churn_probability", "churn_label", "risk_band", "error"}

func (s *Server) handleBatchPredict(c *gin.Context) {
	fileHeader, err := c.FormFile("customers")
	if err != nil {
		s.renderError(c, http.StatusBadRequest, errors.New("customers csv file is required"))
		return
	}
	file, err := fileHeader.Open()
	if err != nil {
		s.renderError(c, http.StatusInternalServerError, err)
		return
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		s.renderError(c, http.StatusBadRequest, fmt.Errorf("read csv header: %w", err))
		return
	}
	for i := range header {
		header[i] = strings.ToLower(strings.TrimSpace(strings.TrimPrefix(header[i], "\ufeff")))
	}

	var out [][]string
	for {
		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			s.renderError(c, http.StatusBadRequest, fmt.Errorf("read csv: %w", err))
			return
		}
		if len(out) >= s.maxBatchRows {
			s.renderError(c, http.StatusRequestEntityTooLarge, fmt.Errorf("batch exceeds %d rows", s.maxBatchRows))
			return
		}

		values := make(map[string]string, len(header))
		for i, name := range header {
			if i < len(row) {
				values[name] = row[i]
			}
		}
		line := make([]string, len(header), len(header)+len(batchResultHeaders))
		copy(line, row)

		in, err := features.FromValues(values)
		if err == nil {
			var result scoring.Result
			_, result, err = s.score(in, uuid.NewString())
			if err == nil {
				s.metrics.ObservePrediction(result.ChurnLabel, result.ChurnProbability, 0)
				line = append(line,
					strconv.FormatFloat(result.ChurnProbability, 'f', 6, 64),
					churnStatus(result.ChurnLabel),
					advice.Band(result.ChurnProbability),
					"",
				)
				out = append(out, line)
				continue
			}
		}

		var perr *predictError
		if errors.As(err, &perr) && perr.status >= http.StatusInternalServerError {
			s.renderPredictError(c, err)
			return
		}
		line = append(line, "", "", "", err.Error())
		out = append(out, line)
	}

	c.Header("Content-Disposition", "attachment; filename=churn-predictions.csv")
	c.Header("Content-Type", "text/csv")

	writer := csv.NewWriter(c.Writer)
	if err := writer.Write(append(header, batchResultHeaders...)); err != nil {
		return
	}
	for _, line := range out {
		if err := writer.Write(line); err != nil {
			return
		}
	}
	writer.Flush()
}
