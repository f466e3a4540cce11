package auth

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/standup/go/clients"
)

// InstanceValidator checks that an activity instance is live
type InstanceValidator interface {
	ValidateInstance(ctx context.Context, instanceID string) (bool, error)
}

// CodeExchanger trades an OAuth code for an access token
type CodeExchanger interface {
	ExchangeCode(ctx context.Context, code string) (string, error)
}

// TokenRequest is the body of POST /api/token
type TokenRequest struct {
	Code       string `json:"code"`
	InstanceID string `json:"instanceId"`
}

// Issue describes one field that failed validation
type Issue struct {
	Path    []string `json:"path"`
	Message string   `json:"message"`
}

type errorResponse struct {
	Error   string  `json:"error"`
	Details []Issue `json:"details,omitempty"`
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
}

const maxBodyBytes = 1 << 16

// TokenHandler serves the OAuth code exchange for the activity client
type TokenHandler struct {
	validator InstanceValidator
	exchanger CodeExchanger
}

func NewTokenHandler(validator InstanceValidator, exchanger CodeExchanger) *TokenHandler {
	return &TokenHandler{
		validator: validator,
		exchanger: exchanger,
	}
}

// HandleToken handles POST /api/token
func (h *TokenHandler) HandleToken(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	req, issues := DecodeTokenRequest(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if len(issues) > 0 {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "Invalid data", Details: issues})
		return
	}

	valid, err := h.validator.ValidateInstance(r.Context(), req.InstanceID)
	if err != nil {
		log.Error().Err(err).Str("instance_id", req.InstanceID).Msg("instance validation error")
	}
	if !valid {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "Invalid instance"})
		return
	}

	token, err := h.exchanger.ExchangeCode(r.Context(), req.Code)
	if err != nil {
		evt := log.Error().Err(err).Str("instance_id", req.InstanceID)
		if se, ok := clients.IsStatus(err); ok {
			evt = evt.Int("status", se.StatusCode)
		}
		evt.Msg("token exchange failed")
		writeJSON(w, http.StatusBadGateway, errorResponse{Error: "Token exchange failed"})
		return
	}

	writeJSON(w, http.StatusOK, tokenResponse{AccessToken: token})
}

type tokenRequestBody struct {
	Code       *string `json:"code" validate:"required"`
	InstanceID *string `json:"instanceId" validate:"required"`
}

var tokenFields = []string{"code", "instanceId"}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	// report fields by their JSON names
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name, _, _ := strings.Cut(field.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// DecodeTokenRequest parses the body and reports every missing or mistyped field
func DecodeTokenRequest(body io.Reader) (TokenRequest, []Issue) {
	var raw tokenRequestBody
	found := make(map[string]string)

	if err := json.NewDecoder(body).Decode(&raw); err != nil {
		var typeErr *json.UnmarshalTypeError
		if !errors.As(err, &typeErr) || typeErr.Field == "" {
			return TokenRequest{}, []Issue{{Path: []string{}, Message: "Expected object, received invalid JSON"}}
		}
		// decoding carries on past a mistyped field, so the rest are still checked
		found[typeErr.Field] = "Expected string"
	}

	if err := validate.Struct(raw); err != nil {
		var fieldErrs validator.ValidationErrors
		if !errors.As(err, &fieldErrs) {
			return TokenRequest{}, []Issue{{Path: []string{}, Message: err.Error()}}
		}
		for _, fe := range fieldErrs {
			if _, ok := found[fe.Field()]; !ok {
				found[fe.Field()] = issueMessage(fe)
			}
		}
	}

	if len(found) > 0 {
		issues := make([]Issue, 0, len(found))
		for _, field := range tokenFields {
			if msg, ok := found[field]; ok {
				issues = append(issues, Issue{Path: []string{field}, Message: msg})
			}
		}
		return TokenRequest{}, issues
	}

	return TokenRequest{Code: *raw.Code, InstanceID: *raw.InstanceID}, nil
}

func issueMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "Required"
	default:
		return "Invalid value"
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("failed to write response")
	}
}
