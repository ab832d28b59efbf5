package controllers

import (
	"context"
	"errors"
	"io"
	"log"
	"mime/multipart"
	"net/http"

	"github.com/dcode-github/agrirent/backend/services"
	"github.com/dcode-github/agrirent/backend/storage"
	"github.com/gorilla/mux"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// pendingUpload is a checked but not yet stored multipart file.
type pendingUpload struct {
	store  *storage.ImageStore
	header *multipart.FileHeader
	url    string
}

// formUpload checks the optional file in the named form field. It returns a
// nil upload when the field is absent.
func formUpload(w http.ResponseWriter, r *http.Request, uploads *storage.ImageStore, field string) (*pendingUpload, bool) {
	file, header, err := r.FormFile(field)
	if errors.Is(err, http.ErrMissingFile) {
		return nil, true
	}
	if err != nil {
		log.Printf("Failed to read %s upload: %v", field, err)
		writeMessage(w, http.StatusBadRequest, "Invalid file upload")
		return nil, false
	}
	file.Close()

	if err := storage.CheckName(header.Filename); err != nil {
		writeMessage(w, http.StatusBadRequest, "Only image files are allowed")
		return nil, false
	}
	return &pendingUpload{store: uploads, header: header}, true
}

func (p *pendingUpload) attach() services.Attach {
	if p == nil {
		return nil
	}
	return func(ctx context.Context) (string, error) {
		file, err := p.header.Open()
		if err != nil {
			return "", err
		}
		defer file.Close()
		url, err := p.store.Save(ctx, file, p.header.Filename)
		if err != nil {
			return "", err
		}
		p.url = url
		return url, nil
	}
}

// discard removes the file if it was stored before the write failed.
func (p *pendingUpload) discard(ctx context.Context) {
	if p == nil || p.url == "" {
		return
	}
	if err := p.store.Delete(ctx, p.url); err != nil {
		log.Printf("Failed to remove orphaned upload %s: %v", p.url, err)
	}
}

// UploadProfilePhoto stores the "photo" file. When the form names the
// caller in "userId" the photo also becomes their profile picture.
func UploadProfilePhoto(auth *services.AuthService, uploads *storage.ImageStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, ok := currentUser(w, r)
		if !ok {
			return
		}

		r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
		if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
			log.Printf("Invalid multipart form: %v", err)
			writeMessage(w, http.StatusBadRequest, "Invalid form data")
			return
		}
		photo, ok := formUpload(w, r, uploads, "photo")
		if !ok {
			return
		}
		if photo == nil {
			writeMessage(w, http.StatusBadRequest, "No file uploaded")
			return
		}

		rawUserID := trimmed(r, "userId")
		if rawUserID == "" {
			fileURL, err := photo.attach()(r.Context())
			if err != nil {
				log.Printf("Failed to store photo: %v", err)
				writeMessage(w, http.StatusInternalServerError, "Upload failed")
				return
			}
			writeSuccess(w, http.StatusOK, payload{"fileUrl": fileURL})
			return
		}
		userID, err := primitive.ObjectIDFromHex(rawUserID)
		if err != nil {
			writeMessage(w, http.StatusBadRequest, "Invalid userId")
			return
		}
		user, err := auth.SetPhoto(r.Context(), userID, actor, photo.attach())
		if err != nil {
			photo.discard(r.Context())
			writeError(w, err, "Upload failed")
			return
		}
		writeSuccess(w, http.StatusOK, payload{"fileUrl": user.Photo, "user": user})
	}
}

// ServeUpload streams a stored image by its file id.
func ServeUpload(uploads *storage.ImageStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rc, contentType, err := uploads.Open(r.Context(), mux.Vars(r)["fileId"])
		if errors.Is(err, storage.ErrNotFound) {
			writeMessage(w, http.StatusNotFound, "File not found")
			return
		}
		if err != nil {
			log.Printf("Failed to open upload: %v", err)
			writeMessage(w, http.StatusInternalServerError, "Failed to read file")
			return
		}
		defer rc.Close()

		w.Header().Set("Content-Type", contentType)
		w.Header().Set("Cache-Control", "public, max-age=86400")
		if _, err := io.Copy(w, rc); err != nil {
			log.Printf("Failed to stream upload: %v", err)
		}
	}
}
