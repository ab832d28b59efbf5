package controllers

import (
	"log"
	"net/http"

	"github.com/dcode-github/agrirent/backend/models"
	"github.com/dcode-github/agrirent/backend/services"
)

type registerRequest struct {
	Name     string `json:"name" validate:"required"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=6"`
	Role     string `json:"role" validate:"required,oneof=owner renter"`
	Phone    string `json:"phone"`
	Pincode  string `json:"pincode"`
	District string `json:"district"`
	State    string `json:"state"`
}

type loginRequest struct {
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
}

func RegisterUser(auth *services.AuthService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req registerRequest
		if !decodeAndValidate(w, r, &req) {
			return
		}

		user, err := auth.Register(r.Context(), services.RegisterInput{
			Name:     req.Name,
			Email:    req.Email,
			Password: req.Password,
			Role:     models.Role(req.Role),
			Phone:    req.Phone,
			Pincode:  req.Pincode,
			District: req.District,
			State:    req.State,
		})
		if err != nil {
			writeError(w, err, "Registration failed")
			return
		}

		log.Printf("Registered %s account %s", user.Role, user.ID.Hex())
		writeSuccess(w, http.StatusCreated, payload{"user": user})
	}
}

func LoginUser(auth *services.AuthService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req loginRequest
		if !decodeAndValidate(w, r, &req) {
			return
		}

		token, user, err := auth.Login(r.Context(), req.Email, req.Password)
		if err != nil {
			writeError(w, err, "Login failed")
			return
		}
		writeSuccess(w, http.StatusOK, payload{"token": token, "user": user})
	}
}

func GetProfile(auth *services.AuthService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := pathID(w, r, "userId")
		if !ok {
			return
		}
		profile, err := auth.Profile(r.Context(), userID)
		if err != nil {
			writeError(w, err, "Failed to load profile")
			return
		}
		writeSuccess(w, http.StatusOK, payload{"user": profile})
	}
}

func UpdateProfile(auth *services.AuthService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, ok := currentUser(w, r)
		if !ok {
			return
		}
		userID, ok := pathID(w, r, "userId")
		if !ok {
			return
		}

		var upd models.ProfileUpdate
		if !decodeAndValidate(w, r, &upd) {
			return
		}
		user, err := auth.UpdateProfile(r.Context(), userID, actor, upd)
		if err != nil {
			writeError(w, err, "Profile update failed")
			return
		}
		writeSuccess(w, http.StatusOK, payload{"user": user})
	}
}
