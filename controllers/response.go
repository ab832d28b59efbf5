package controllers

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"reflect"
	"strings"

	"github.com/dcode-github/agrirent/backend/models"
	"github.com/dcode-github/agrirent/backend/services"
	"github.com/go-playground/validator/v10"
	"github.com/gorilla/mux"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type ContextKey string

const (
	UserIDKey = ContextKey("userID")
	RoleKey   = ContextKey("role")
)

const maxBodyBytes = 1 << 20

var validate = newValidator()

// newValidator reports fields by their JSON names.
func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// payload is a success body; writeSuccess adds "success": true.
type payload map[string]any

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("Error encoding response: %v", err)
	}
}

func writeSuccess(w http.ResponseWriter, status int, body payload) {
	if body == nil {
		body = payload{}
	}
	body["success"] = true
	writeJSON(w, status, body)
}

func writeMessage(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, models.APIResponse{Success: status < 400, Message: msg})
}

// writeError maps a service error onto a status code. Only domain errors
// expose their message; anything else is logged and answered with
// fallback.
func writeError(w http.ResponseWriter, err error, fallback string) {
	var domainErr *services.Error
	if !errors.As(err, &domainErr) {
		log.Printf("%s: %v", fallback, err)
		writeMessage(w, http.StatusInternalServerError, fallback)
		return
	}

	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, services.ErrValidation), errors.Is(err, services.ErrRule):
		status = http.StatusBadRequest
	case errors.Is(err, services.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, services.ErrForbidden):
		status = http.StatusForbidden
	case errors.Is(err, services.ErrUnauthorized):
		status = http.StatusUnauthorized
	case errors.Is(err, services.ErrBusy):
		status = http.StatusConflict
	case errors.Is(err, services.ErrUpstream):
		status = http.StatusBadGateway
	}
	if status >= 500 {
		log.Printf("%s: %v", fallback, err)
	}
	writeMessage(w, status, domainErr.Message())
}

// currentUser returns the authenticated account id placed in the request
// context by the auth middleware.
func currentUser(w http.ResponseWriter, r *http.Request) (primitive.ObjectID, bool) {
	userID, ok := r.Context().Value(UserIDKey).(string)
	if !ok {
		log.Println("User ID missing in context")
		writeMessage(w, http.StatusUnauthorized, "User ID missing in context")
		return primitive.NilObjectID, false
	}
	id, err := primitive.ObjectIDFromHex(userID)
	if err != nil {
		log.Printf("Malformed user ID in token: %s", userID)
		writeMessage(w, http.StatusUnauthorized, "Invalid token subject")
		return primitive.NilObjectID, false
	}
	return id, true
}

// currentRole is the role claim of the authenticated token.
func currentRole(r *http.Request) models.Role {
	role, _ := r.Context().Value(RoleKey).(string)
	return models.Role(role)
}

// pathID parses the ObjectID in the named path variable.
func pathID(w http.ResponseWriter, r *http.Request, name string) (primitive.ObjectID, bool) {
	raw := mux.Vars(r)[name]
	id, err := primitive.ObjectIDFromHex(raw)
	if err != nil {
		writeMessage(w, http.StatusBadRequest, fmt.Sprintf("Invalid %s", name))
		return primitive.NilObjectID, false
	}
	return id, true
}

// requireSelf checks that the id in the named path variable is the caller.
func requireSelf(w http.ResponseWriter, r *http.Request, name string) (primitive.ObjectID, bool) {
	actor, ok := currentUser(w, r)
	if !ok {
		return actor, false
	}
	id, ok := pathID(w, r, name)
	if !ok {
		return id, false
	}
	if id != actor {
		writeMessage(w, http.StatusForbidden, "You can only access your own records")
		return id, false
	}
	return id, true
}

// decodeAndValidate reads a JSON body into dst and runs its validate tags.
func decodeAndValidate(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(dst); err != nil {
		log.Printf("Invalid request body: %v", err)
		writeMessage(w, http.StatusBadRequest, "Invalid request body")
		return false
	}
	if err := validate.Struct(dst); err != nil {
		writeMessage(w, http.StatusBadRequest, validationMessage(err))
		return false
	}
	return true
}

func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return "Invalid request body"
	}
	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		field := fe.Field()
		switch fe.Tag() {
		case "required":
			parts = append(parts, field+" is required")
		case "email":
			parts = append(parts, field+" must be a valid email")
		case "oneof":
			parts = append(parts, fmt.Sprintf("%s must be one of [%s]", field, fe.Param()))
		case "min", "gte":
			parts = append(parts, fmt.Sprintf("%s must be at least %s", field, fe.Param()))
		case "max", "lte":
			parts = append(parts, fmt.Sprintf("%s must be at most %s", field, fe.Param()))
		case "gtfield":
			parts = append(parts, fmt.Sprintf("%s must be after %s", field, lowerFirst(fe.Param())))
		default:
			parts = append(parts, field+" is invalid")
		}
	}
	return strings.Join(parts, ", ")
}

func lowerFirst(s string) string {
	if s == "" {
		return s
	}
	return strings.ToLower(s[:1]) + s[1:]
}
