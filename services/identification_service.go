package services

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/crypto/blake2b"
	"gorm.io/gorm"

	"github.com/camden-git/missingpersons/media"
	"github.com/camden-git/missingpersons/models"
	"github.com/camden-git/missingpersons/realtime"
	"github.com/camden-git/missingpersons/repository"
)

var (
	// ErrNoFaceDetected is returned when a registration photo has no face
	ErrNoFaceDetected = errors.New("no face detected")
	// ErrRecordNotFound is returned for unknown person or sighting ids
	ErrRecordNotFound = errors.New("record not found")
)

type SearchStatus string

const (
	StatusMatchFound SearchStatus = "match_found"
	StatusNoMatch    SearchStatus = "no_match"
	StatusNoFace     SearchStatus = "no_face"
)

// EventBroadcaster receives registry and sighting events for live clients
type EventBroadcaster interface {
	Broadcast(event realtime.Event)
}

// RegisterInput carries a registration form and its reference photo
type RegisterInput struct {
	Name      string
	Age       *int
	Gender    string
	Height    *float64
	Weight    *float64
	Phone     string
	Latitude  *float64
	Longitude *float64
	Image     []byte
}

// CameraSearchInput carries a live camera capture
type CameraSearchInput struct {
	ImageData string // base64 data URL
	Latitude  *float64
	Longitude *float64
	SessionID string
}

// SearchResult is the outcome of matching a probe against the registry
type SearchResult struct {
	Status SearchStatus
	Person *models.Person
	Match  *Match
}

// CameraSearchResult adds the logged sighting and the alert outcome
type CameraSearchResult struct {
	SearchResult
	Sighting     *models.Sighting
	Notification *NotificationOutcome
}

// IdentificationOptions holds image handling parameters for the workflows
type IdentificationOptions struct {
	Probe               media.ProbeOptions
	SightingMaxSize     int
	SightingJPEGQuality int
}

// IdentificationService glues extraction, matching, the sighting log and
// alerting together
type IdentificationService struct {
	persons   repository.PersonRepositoryInterface
	sightings repository.SightingRepositoryInterface
	extractor media.FaceExtractor
	processor *media.Processor
	matcher   *Matcher
	notifier  *AlertNotifier
	events    EventBroadcaster
	opts      IdentificationOptions
	log       *zap.Logger
}

func NewIdentificationService(
	persons repository.PersonRepositoryInterface,
	sightings repository.SightingRepositoryInterface,
	extractor media.FaceExtractor,
	processor *media.Processor,
	matcher *Matcher,
	notifier *AlertNotifier,
	events EventBroadcaster,
	opts IdentificationOptions,
	log *zap.Logger,
) *IdentificationService {
	return &IdentificationService{
		persons:   persons,
		sightings: sightings,
		extractor: extractor,
		processor: processor,
		matcher:   matcher,
		notifier:  notifier,
		events:    events,
		opts:      opts,
		log:       log,
	}
}

// Register stores a new person. The face is extracted from the in-memory
// upload before anything touches the disk, so a photo without a face leaves
// neither a record nor a file behind.
func (s *IdentificationService) Register(ctx context.Context, in RegisterInput) (*models.Person, error) {
	if _, err := media.DecodeImage(in.Image); err != nil {
		return nil, err
	}

	embedding, ok, err := s.extractor.ExtractPrimary(ctx, in.Image)
	if err != nil {
		return nil, fmt.Errorf("failed to extract face from registration photo: %w", err)
	}
	if !ok {
		return nil, ErrNoFaceDetected
	}

	latitude, longitude := in.Latitude, in.Longitude
	if latitude == nil || longitude == nil {
		if meta, err := media.ExtractMetadata(in.Image); err == nil && meta.Latitude != nil {
			latitude, longitude = meta.Latitude, meta.Longitude
			s.log.Debug("using EXIF location for registration")
		}
	}

	filename, err := s.processor.SaveReferenceImage(in.Image)
	if err != nil {
		return nil, fmt.Errorf("failed to store registration photo: %w", err)
	}

	person := &models.Person{
		Name:          strings.TrimSpace(in.Name),
		Age:           in.Age,
		Gender:        strings.TrimSpace(in.Gender),
		Height:        in.Height,
		Weight:        in.Weight,
		Phone:         strings.TrimSpace(in.Phone),
		ImageFilename: filename,
		Latitude:      latitude,
		Longitude:     longitude,
	}
	person.SetEmbedding(embedding, s.extractor.ModelName())

	if err := s.persons.Create(person); err != nil {
		if delErr := s.processor.DeleteReferenceImage(filename); delErr != nil {
			s.log.Error("failed to remove photo after registration failure",
				zap.String("filename", filename), zap.Error(delErr))
		}
		return nil, err
	}

	s.log.Info("registered person", zap.Uint("person_id", person.ID), zap.String("name", person.Name))
	s.broadcast(realtime.Event{
		Type:      realtime.EventPersonRegistered,
		PersonID:  person.ID,
		Name:      person.Name,
		Latitude:  person.Latitude,
		Longitude: person.Longitude,
	})
	return person, nil
}

// Search matches an uploaded photo against the registry. The probe is never
// written to disk.
func (s *IdentificationService) Search(ctx context.Context, image []byte) (SearchResult, error) {
	if _, err := media.DecodeImage(image); err != nil {
		return SearchResult{}, err
	}
	return s.match(ctx, image)
}

// CameraSearch matches a camera capture and, on a match, logs a sighting and
// alerts the person's contact number.
func (s *IdentificationService) CameraSearch(ctx context.Context, in CameraSearchInput) (CameraSearchResult, error) {
	data, _, err := media.ParseDataURL(in.ImageData)
	if err != nil {
		return CameraSearchResult{}, err
	}
	img, err := media.DecodeImage(data)
	if err != nil {
		return CameraSearchResult{}, err
	}

	probe, err := s.processor.PrepareProbe(img, s.opts.Probe)
	if err != nil {
		return CameraSearchResult{}, fmt.Errorf("failed to prepare probe image: %w", err)
	}

	result, err := s.match(ctx, probe)
	if err != nil || result.Status != StatusMatchFound {
		return CameraSearchResult{SearchResult: result}, err
	}

	filename, err := s.processor.SaveSightingImage(img, s.opts.SightingMaxSize, s.opts.SightingJPEGQuality)
	if err != nil {
		return CameraSearchResult{}, fmt.Errorf("failed to store sighting image: %w", err)
	}

	sighting := &models.Sighting{
		PersonID:      result.Person.ID,
		ImageFilename: filename,
		Latitude:      in.Latitude,
		Longitude:     in.Longitude,
		MatchScore:    result.Match.Score,
		MatchDistance: result.Match.Distance,
		SessionHash:   HashSessionID(in.SessionID),
	}
	if err := s.sightings.Create(sighting); err != nil {
		if delErr := s.processor.DeleteSightingImage(filename); delErr != nil {
			s.log.Error("failed to remove sighting image after insert failure",
				zap.String("filename", filename), zap.Error(delErr))
		}
		return CameraSearchResult{}, err
	}

	// the sighting is already logged; the alert must outlive a dropped client
	outcome := s.notifier.Notify(context.WithoutCancel(ctx), result.Person, result.Match.Score, in.Latitude, in.Longitude)
	sighting.NotificationStatus = outcome.Status
	sighting.NotificationDetail = outcome.Reason
	if err := s.sightings.UpdateNotification(sighting.ID, outcome.Status, outcome.Reason); err != nil {
		s.log.Error("failed to record notification outcome",
			zap.Uint("sighting_id", sighting.ID), zap.Error(err))
	}

	s.log.Info("sighting logged",
		zap.Uint("sighting_id", sighting.ID),
		zap.Uint("person_id", result.Person.ID),
		zap.Int("score", result.Match.Score),
		zap.String("notification", string(outcome.Status)))
	s.broadcast(realtime.Event{
		Type:               realtime.EventSightingLogged,
		PersonID:           result.Person.ID,
		SightingID:         sighting.ID,
		Name:               result.Person.Name,
		MatchScore:         result.Match.Score,
		Latitude:           in.Latitude,
		Longitude:          in.Longitude,
		NotificationStatus: string(outcome.Status),
	})

	return CameraSearchResult{
		SearchResult: result,
		Sighting:     sighting,
		Notification: &outcome,
	}, nil
}

// match extracts every face from the probe and finds the closest registered person
func (s *IdentificationService) match(ctx context.Context, probe []byte) (SearchResult, error) {
	queries, err := s.extractor.ExtractAll(ctx, probe)
	if err != nil {
		return SearchResult{}, fmt.Errorf("failed to extract faces from probe: %w", err)
	}
	if len(queries) == 0 {
		return SearchResult{Status: StatusNoFace}, nil
	}

	people, err := s.persons.ListWithEmbeddings()
	if err != nil {
		return SearchResult{}, err
	}

	modelName := s.extractor.ModelName()
	candidates := make([]Candidate, 0, len(people))
	byID := make(map[uint]*models.Person, len(people))
	for i := range people {
		p := &people[i]
		if p.EmbeddingModel == nil || *p.EmbeddingModel != modelName {
			continue
		}
		candidates = append(candidates, Candidate{PersonID: p.ID, Embedding: p.GetEmbedding()})
		byID[p.ID] = p
	}

	best, ok := s.matcher.FindBestMatch(queries, candidates)
	if !ok {
		return SearchResult{Status: StatusNoMatch}, nil
	}
	return SearchResult{Status: StatusMatchFound, Person: byID[best.PersonID], Match: &best}, nil
}

// GetSighting replays a logged sighting with its person, score and alert outcome
func (s *IdentificationService) GetSighting(id uint) (*models.Sighting, error) {
	sighting, err := s.sightings.GetByID(id)
	if err != nil {
		return nil, translateNotFound(err)
	}
	return sighting, nil
}

func (s *IdentificationService) GetPerson(id uint) (*models.Person, error) {
	person, err := s.persons.GetByID(id)
	if err != nil {
		return nil, translateNotFound(err)
	}
	return person, nil
}

func (s *IdentificationService) ListPersons() ([]models.Person, error) {
	return s.persons.ListAll()
}

// ListSightingsForPerson returns a person's sightings, newest first
func (s *IdentificationService) ListSightingsForPerson(personID uint) ([]models.Sighting, error) {
	if _, err := s.GetPerson(personID); err != nil {
		return nil, err
	}
	return s.sightings.ListByPersonID(personID)
}

func (s *IdentificationService) broadcast(event realtime.Event) {
	if s.events != nil {
		s.events.Broadcast(event)
	}
}

func translateNotFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrRecordNotFound
	}
	return err
}

// HashSessionID fingerprints a client session id so raw ids are never stored
func HashSessionID(sessionID string) string {
	if sessionID == "" {
		return ""
	}
	sum := blake2b.Sum256([]byte(sessionID))
	return hex.EncodeToString(sum[:])
}
