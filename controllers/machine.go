package controllers

import (
	"encoding/json"
	"fmt"
	"log"
	"mime"
	"net/http"
	"strconv"
	"strings"

	"github.com/dcode-github/agrirent/backend/cache"
	"github.com/dcode-github/agrirent/backend/models"
	"github.com/dcode-github/agrirent/backend/services"
	"github.com/dcode-github/agrirent/backend/storage"
)

const maxUploadBytes = 10 << 20

type rateRequest struct {
	Rating int    `json:"rating" validate:"required,min=1,max=5"`
	Review string `json:"review" validate:"max=2000"`
}

func CreateMachine(machines *services.MachineService, uploads *storage.ImageStore, listings *cache.ListingCache) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ownerID, ok := currentUser(w, r)
		if !ok {
			return
		}
		if currentRole(r) == models.RoleRenter {
			writeMessage(w, http.StatusForbidden, "Only owners can list machines")
			return
		}
		fields, image, ok := readMachineForm(w, r, uploads)
		if !ok {
			return
		}

		machine, err := machines.Create(r.Context(), ownerID, fields, image.attach())
		if err != nil {
			image.discard(r.Context())
			writeError(w, err, "Failed to create machine")
			return
		}
		listings.Invalidate(r.Context())

		log.Printf("Machine %s listed by %s", machine.ID.Hex(), ownerID.Hex())
		writeSuccess(w, http.StatusCreated, payload{"machine": machine})
	}
}

func GetMachines(machines *services.MachineService, listings *cache.ListingCache) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		query := r.URL.Query()
		cacheKey := cache.Key(query)

		if cached, ok := listings.Get(r.Context(), cacheKey); ok {
			w.Header().Set("Content-Type", "application/json")
			w.Header().Set("X-Cache", "HIT")
			w.Write(cached)
			return
		}

		results, err := machines.List(r.Context(), services.ParseMachineFilter(query))
		if err != nil {
			writeError(w, err, "Failed to retrieve machines")
			return
		}

		body, err := json.Marshal(payload{"success": true, "machines": results})
		if err != nil {
			log.Printf("Failed to marshal machines: %v", err)
			writeMessage(w, http.StatusInternalServerError, "Failed to process results")
			return
		}
		listings.Set(r.Context(), cacheKey, body)

		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("X-Cache", "MISS")
		w.Write(body)
	}
}

func GetMachinesByOwner(machines *services.MachineService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ownerID, ok := pathID(w, r, "ownerId")
		if !ok {
			return
		}
		results, err := machines.ListByOwner(r.Context(), ownerID)
		if err != nil {
			writeError(w, err, "Failed to retrieve machines")
			return
		}
		writeSuccess(w, http.StatusOK, payload{"machines": results})
	}
}

func GetMachineByID(machines *services.MachineService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathID(w, r, "id")
		if !ok {
			return
		}
		detail, err := machines.Detail(r.Context(), id)
		if err != nil {
			writeError(w, err, "Failed to load machine")
			return
		}
		writeSuccess(w, http.StatusOK, payload{
			"machine":                detail.Machine,
			"owner":                  detail.Owner,
			"otherMachinesFromOwner": detail.OtherMachinesFromOwner,
		})
	}
}

func UpdateMachine(machines *services.MachineService, uploads *storage.ImageStore, listings *cache.ListingCache) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ownerID, ok := currentUser(w, r)
		if !ok {
			return
		}
		id, ok := pathID(w, r, "id")
		if !ok {
			return
		}
		fields, image, ok := readMachineForm(w, r, uploads)
		if !ok {
			return
		}

		machine, err := machines.Update(r.Context(), id, ownerID, fields, image.attach())
		if err != nil {
			image.discard(r.Context())
			writeError(w, err, "Update failed")
			return
		}
		listings.Invalidate(r.Context())
		writeSuccess(w, http.StatusOK, payload{"machine": machine})
	}
}

func DeleteMachine(machines *services.MachineService, listings *cache.ListingCache) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ownerID, ok := currentUser(w, r)
		if !ok {
			return
		}
		id, ok := pathID(w, r, "id")
		if !ok {
			return
		}
		if err := machines.Delete(r.Context(), id, ownerID); err != nil {
			writeError(w, err, "Delete failed")
			return
		}
		listings.Invalidate(r.Context())
		writeMessage(w, http.StatusOK, "Machine deleted successfully")
	}
}

func RateMachine(machines *services.MachineService, listings *cache.ListingCache) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		renterID, ok := currentUser(w, r)
		if !ok {
			return
		}
		id, ok := pathID(w, r, "machineId")
		if !ok {
			return
		}
		var req rateRequest
		if !decodeAndValidate(w, r, &req) {
			return
		}

		machine, err := machines.Rate(r.Context(), id, renterID, req.Rating, req.Review)
		if err != nil {
			writeError(w, err, "Rating failed")
			return
		}
		listings.Invalidate(r.Context())
		writeSuccess(w, http.StatusOK, payload{
			"message":       "Rating submitted successfully",
			"averageRating": machine.AverageRating,
		})
	}
}

// readMachineForm collects listing fields from a multipart form (with an
// optional "image" file) or a JSON object. Nested "meta" objects are
// flattened into the field set. The image is only checked here; it is
// stored once the service accepts the write.
func readMachineForm(w http.ResponseWriter, r *http.Request, uploads *storage.ImageStore) (map[string]string, *pendingUpload, bool) {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType != "multipart/form-data" {
		fields, err := jsonFields(w, r)
		if err != nil {
			log.Printf("Invalid request body: %v", err)
			writeMessage(w, http.StatusBadRequest, "Invalid request body")
			return nil, nil, false
		}
		return fields, nil, true
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		log.Printf("Invalid multipart form: %v", err)
		writeMessage(w, http.StatusBadRequest, "Invalid form data")
		return nil, nil, false
	}
	fields := make(map[string]string, len(r.MultipartForm.Value))
	for k, v := range r.MultipartForm.Value {
		if len(v) > 0 {
			fields[k] = v[0]
		}
	}

	image, ok := formUpload(w, r, uploads, "image")
	if !ok {
		return nil, nil, false
	}
	return fields, image, true
}

func jsonFields(w http.ResponseWriter, r *http.Request) (map[string]string, error) {
	var raw map[string]any
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.UseNumber()
	if err := dec.Decode(&raw); err != nil {
		return nil, err
	}
	fields := make(map[string]string, len(raw))
	flatten(fields, raw)
	return fields, nil
}

func flatten(dst map[string]string, src map[string]any) {
	for k, v := range src {
		switch val := v.(type) {
		case string:
			dst[k] = val
		case json.Number:
			dst[k] = val.String()
		case bool:
			dst[k] = strconv.FormatBool(val)
		case map[string]any:
			if k == "meta" {
				flatten(dst, val)
			}
		case nil:
		default:
			dst[k] = fmt.Sprint(val)
		}
	}
}

func trimmed(r *http.Request, key string) string {
	return strings.TrimSpace(r.FormValue(key))
}
