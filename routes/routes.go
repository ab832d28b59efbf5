package routes

import (
	"github.com/dcode-github/agrirent/backend/cache"
	"github.com/dcode-github/agrirent/backend/controllers"
	"github.com/dcode-github/agrirent/backend/middleware"
	"github.com/dcode-github/agrirent/backend/models"
	"github.com/dcode-github/agrirent/backend/realtime"
	"github.com/dcode-github/agrirent/backend/services"
	"github.com/dcode-github/agrirent/backend/storage"
	"github.com/dcode-github/agrirent/backend/utils"
	"github.com/gorilla/mux"
)

// Deps holds everything the handlers are built from.
type Deps struct {
	Auth      *services.AuthService
	Machines  *services.MachineService
	Rentals   *services.RentalService
	Chat      *services.ChatService
	Analytics *services.AnalyticsService
	Prices    *services.PriceService
	Listings  *cache.ListingCache
	Uploads   *storage.ImageStore
	Hub       *realtime.Hub
	Tokens    *utils.TokenManager
	Origins   []string
}

func Routes(router *mux.Router, d Deps) {
	protect := middleware.Auth(d.Tokens)
	api := router.PathPrefix("/api").Subrouter()

	// Auth routes
	api.HandleFunc("/auth/register", controllers.RegisterUser(d.Auth)).Methods("POST")
	api.HandleFunc("/auth/login", controllers.LoginUser(d.Auth)).Methods("POST")
	api.Handle("/auth/profile/{userId}", protect(controllers.GetProfile(d.Auth))).Methods("GET")
	api.Handle("/auth/profile/{userId}", protect(controllers.UpdateProfile(d.Auth))).Methods("PUT")
	api.Handle("/upload/profile", protect(controllers.UploadProfilePhoto(d.Auth, d.Uploads))).Methods("POST")

	// Machine routes; browsing is public
	api.HandleFunc("/machines", controllers.GetMachines(d.Machines, d.Listings)).Methods("GET")
	api.Handle("/machines", protect(controllers.CreateMachine(d.Machines, d.Uploads, d.Listings))).Methods("POST")
	api.Handle("/machines/rate-machine/{machineId}", protect(controllers.RateMachine(d.Machines, d.Listings))).Methods("POST")
	api.HandleFunc("/machines/owner/{ownerId}", controllers.GetMachinesByOwner(d.Machines)).Methods("GET")
	api.HandleFunc("/machines/{id}", controllers.GetMachineByID(d.Machines)).Methods("GET")
	api.Handle("/machines/{id}", protect(controllers.UpdateMachine(d.Machines, d.Uploads, d.Listings))).Methods("PUT")
	api.Handle("/machines/{id}", protect(controllers.DeleteMachine(d.Machines, d.Listings))).Methods("DELETE")

	// Rental routes
	api.Handle("/rentals", protect(controllers.CreateRental(d.Rentals))).Methods("POST")
	api.HandleFunc("/rentals/booked/{machineId}", controllers.GetBookedSlots(d.Rentals)).Methods("GET")
	api.Handle("/rentals/my/{renterId}", protect(controllers.GetRenterRentals(d.Rentals, "renterId"))).Methods("GET")
	api.Handle("/rentals/user/{userId}", protect(controllers.GetRenterRentals(d.Rentals, "userId"))).Methods("GET")
	api.Handle("/rentals/owner/{ownerId}/pending", protect(controllers.GetOwnerRentals(d.Rentals, models.StatusPending))).Methods("GET")
	api.Handle("/rentals/owner/{ownerId}/active", protect(controllers.GetOwnerRentals(d.Rentals, models.StatusActive))).Methods("GET")
	api.Handle("/rentals/owner/{ownerId}/earnings", protect(controllers.GetOwnerEarnings(d.Rentals))).Methods("GET")
	api.Handle("/rentals/owner/{ownerId}/analytics", protect(controllers.GetOwnerAnalytics(d.Analytics))).Methods("GET")
	api.Handle("/rentals/renter/{renterId}/analytics", protect(controllers.GetRenterAnalytics(d.Analytics))).Methods("GET")
	api.Handle("/rentals/complete/{id}", protect(controllers.TransitionRental(d.Rentals, "id", models.StatusCompleted, "Rental completed"))).Methods("PATCH")
	api.Handle("/rentals/cancel/{rentalId}", protect(controllers.TransitionRental(d.Rentals, "rentalId", models.StatusCancelled, "Rental cancelled"))).Methods("PATCH")
	api.Handle("/rentals/extend/{rentalId}", protect(controllers.ExtendRental(d.Rentals))).Methods("PATCH")
	api.Handle("/rentals/{rentalId}/status", protect(controllers.UpdateRentalStatus(d.Rentals))).Methods("PATCH")

	// Chat routes
	api.Handle("/chat/send", protect(controllers.SendMessage(d.Chat))).Methods("POST")
	api.Handle("/chat/{rentalId}", protect(controllers.GetChatByRental(d.Chat))).Methods("GET")
	api.Handle("/chat/{rentalId}/seen", protect(controllers.MarkChatSeen(d.Chat))).Methods("POST")

	// Price prediction
	api.HandleFunc("/price/predict", controllers.PredictPrice(d.Prices)).Methods("POST")

	// Live chat; the handler checks the token itself
	router.HandleFunc("/ws", controllers.ServeWS(d.Hub, d.Chat, d.Tokens, d.Origins)).Methods("GET")

	// Stored images
	router.HandleFunc(storage.PublicPrefix+"{fileId}", controllers.ServeUpload(d.Uploads)).Methods("GET")
}
