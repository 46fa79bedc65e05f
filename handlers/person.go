package handlers

import (
	"errors"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/camden-git/missingpersons/services"
)

type PersonHandler struct {
	Service        Identifier
	MaxUploadBytes int64
	Log            *zap.Logger
}

// RegisterPerson handles the multipart registration form with its reference photo
func (ph *PersonHandler) RegisterPerson(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, ph.MaxUploadBytes)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		if isTooLarge(err) {
			WriteAPIError(w, http.StatusRequestEntityTooLarge, CodeInvalidRequest, "Upload exceeds the maximum allowed size")
			return
		}
		WriteAPIError(w, http.StatusBadRequest, CodeInvalidRequest, "Expected a multipart form: "+err.Error())
		return
	}
	defer r.MultipartForm.RemoveAll()

	req := registerRequest{
		Name:   strings.TrimSpace(r.FormValue("name")),
		Gender: strings.TrimSpace(r.FormValue("gender")),
		Phone:  strings.TrimSpace(r.FormValue("phone")),
	}
	var err error
	if req.Age, err = optionalInt(r.FormValue("age")); err != nil {
		WriteAPIError(w, http.StatusBadRequest, CodeValidationFailed, "age must be a whole number")
		return
	}
	for _, f := range []struct {
		field string
		dst   **float64
	}{
		{"height", &req.Height},
		{"weight", &req.Weight},
		{"latitude", &req.Latitude},
		{"longitude", &req.Longitude},
	} {
		if *f.dst, err = optionalFloat(r.FormValue(f.field)); err != nil {
			WriteAPIError(w, http.StatusBadRequest, CodeValidationFailed, f.field+" must be a number")
			return
		}
	}
	if err := validate.Struct(req); err != nil {
		WriteAPIError(w, http.StatusBadRequest, CodeValidationFailed, validationMessage(err))
		return
	}

	image, err := readFormFile(r, "image")
	if err != nil {
		if errors.Is(err, errMissingFile) {
			WriteAPIError(w, http.StatusBadRequest, CodeInvalidRequest, "Missing required file: image")
			return
		}
		WriteAPIError(w, http.StatusBadRequest, CodeInvalidRequest, err.Error())
		return
	}

	person, err := ph.Service.Register(r.Context(), services.RegisterInput{
		Name:      req.Name,
		Age:       req.Age,
		Gender:    req.Gender,
		Height:    req.Height,
		Weight:    req.Weight,
		Phone:     req.Phone,
		Latitude:  req.Latitude,
		Longitude: req.Longitude,
		Image:     image,
	})
	if err != nil {
		writeServiceError(w, ph.Log, err, "register person")
		return
	}

	writeJSON(w, http.StatusCreated, newPersonResponse(person))
}

func (ph *PersonHandler) ListPersons(w http.ResponseWriter, r *http.Request) {
	people, err := ph.Service.ListPersons()
	if err != nil {
		writeServiceError(w, ph.Log, err, "retrieve persons")
		return
	}
	resp := make([]personResponse, 0, len(people))
	for i := range people {
		resp = append(resp, newPersonResponse(&people[i]))
	}
	writeJSON(w, http.StatusOK, resp)
}

func (ph *PersonHandler) GetPerson(w http.ResponseWriter, r *http.Request) {
	personID, err := uintURLParam(r, "person_id")
	if err != nil {
		WriteAPIError(w, http.StatusBadRequest, CodeInvalidRequest, "Invalid person ID format")
		return
	}

	person, err := ph.Service.GetPerson(personID)
	if err != nil {
		writeServiceError(w, ph.Log, err, "retrieve person")
		return
	}
	writeJSON(w, http.StatusOK, newPersonResponse(person))
}

// ListPersonSightings returns the sighting log of one person, newest first
func (ph *PersonHandler) ListPersonSightings(w http.ResponseWriter, r *http.Request) {
	personID, err := uintURLParam(r, "person_id")
	if err != nil {
		WriteAPIError(w, http.StatusBadRequest, CodeInvalidRequest, "Invalid person ID format")
		return
	}

	sightings, err := ph.Service.ListSightingsForPerson(personID)
	if err != nil {
		writeServiceError(w, ph.Log, err, "retrieve sightings")
		return
	}
	resp := make([]sightingResponse, 0, len(sightings))
	for i := range sightings {
		resp = append(resp, newSightingResponse(&sightings[i]))
	}
	writeJSON(w, http.StatusOK, resp)
}
