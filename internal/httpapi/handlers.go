package httpapi

import (
	"errors"
	"net/http"
	"time"

	"venue-outreach/internal/auth"
	"venue-outreach/internal/events"
	"venue-outreach/internal/outreach"
	"venue-outreach/internal/reporting"
	"venue-outreach/internal/venues"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// Handlers groups HTTP handlers for dependency injection.
// Keep these thin: parse/validate input, call internal services, return JSON.

type Handlers struct {
	Auth      *auth.Manager
	Scheduler *outreach.Scheduler
	Store     outreach.Store
	Events    events.Repository
	Intake    events.Intake
	Reports   *reporting.Service
}

// --- Auth ---

type loginRequest struct {
	UserID string `json:"user_id"`
	Role   string `json:"role"`
}

// Login issues a JWT token pair.
//
// NOTE: This is a skeleton-only endpoint. Real systems must validate credentials.
func (h Handlers) Login(c *gin.Context) {
	if h.Auth == nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "auth not configured"})
		return
	}
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	if req.UserID == "" || req.Role == "" {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "user_id, role required"})
		return
	}
	pair, err := h.Auth.IssuePair(time.Now(), req.UserID, req.Role)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "token issuance failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"access_token": pair.AccessToken, "refresh_token": pair.RefreshToken})
}

// --- Events ---

type createEventRequest struct {
	VenueType         string   `json:"venue_type"`
	LocationCity      string   `json:"location_city"`
	LocationState     string   `json:"location_state"`
	StartDate         string   `json:"start_date"`
	EndDate           string   `json:"end_date"`
	NumberOfAttendees int      `json:"number_of_attendees"`
	BudgetMin         int64    `json:"budget_min"`
	BudgetMax         int64    `json:"budget_max"`
	RequiredAmenities []string `json:"required_amenities"`
	AdditionalDetails string   `json:"additional_details"`
	RequesterEmail    string   `json:"requester_email"`
	RequesterPhone    string   `json:"requester_phone"`

	Venues []createVenueRequest `json:"venues"`
}

type createVenueRequest struct {
	Name          string   `json:"name"`
	Location      string   `json:"location"`
	Capacity      *int     `json:"capacity"`
	PricingMin    *int64   `json:"pricing_min"`
	PricingMax    *int64   `json:"pricing_max"`
	Amenities     []string `json:"amenities"`
	URL           string   `json:"url"`
	ContactPhone  string   `json:"contact_phone"`
	GooglePlaceID string   `json:"google_place_id"`
}

// CreateEvent registers a planning request and its discovered venues in one
// atomic write.
func (h Handlers) CreateEvent(c *gin.Context) {
	if h.Intake == nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "intake not configured"})
		return
	}
	var req createEventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	if req.VenueType == "" || req.LocationCity == "" {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "venue_type, location_city required"})
		return
	}

	userID, _ := auth.UserID(c.Request.Context())
	now := time.Now().UTC()

	ev := events.Event{
		ID:                uuid.NewString(),
		RequesterUserID:   userID,
		VenueType:         req.VenueType,
		LocationCity:      req.LocationCity,
		LocationState:     req.LocationState,
		StartDate:         req.StartDate,
		EndDate:           req.EndDate,
		NumberOfAttendees: req.NumberOfAttendees,
		BudgetMin:         req.BudgetMin,
		BudgetMax:         req.BudgetMax,
		RequiredAmenities: req.RequiredAmenities,
		AdditionalDetails: req.AdditionalDetails,
		RequesterEmail:    req.RequesterEmail,
		RequesterPhone:    req.RequesterPhone,
		CreatedAt:         now,
	}

	vs := make([]venues.Venue, 0, len(req.Venues))
	for _, v := range req.Venues {
		vs = append(vs, venues.Venue{
			ID:            uuid.NewString(),
			EventID:       ev.ID,
			Name:          v.Name,
			Location:      v.Location,
			Capacity:      v.Capacity,
			PricingMin:    v.PricingMin,
			PricingMax:    v.PricingMax,
			Amenities:     v.Amenities,
			URL:           v.URL,
			ContactPhone:  v.ContactPhone,
			GooglePlaceID: v.GooglePlaceID,
			Status:        venues.StatusDiscovered,
			CreatedAt:     now,
		})
	}

	if err := h.Intake.CreateWithVenues(c.Request.Context(), ev, vs); err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "event creation failed"})
		return
	}
	c.JSON(http.StatusCreated, gin.H{"event_id": ev.ID, "venues": len(vs)})
}

// --- Outreach ---

// ScheduleOutreach kicks off the call batch for an event's discovered venues.
func (h Handlers) ScheduleOutreach(c *gin.Context) {
	if h.Scheduler == nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "scheduler not configured"})
		return
	}
	eventID := c.Param("event_id")
	if eventID == "" {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "event_id required"})
		return
	}
	if h.Events != nil {
		if _, err := h.Events.Get(c.Request.Context(), eventID); err != nil {
			if errors.Is(err, events.ErrNotFound) {
				c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "event not found"})
				return
			}
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "event lookup failed"})
			return
		}
	}

	res, err := h.Scheduler.ScheduleOutreach(c.Request.Context(), eventID)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "scheduling failed"})
		return
	}
	c.JSON(http.StatusOK, res)
}

// OutreachSummary reports attempt dispositions for an event.
func (h Handlers) OutreachSummary(c *gin.Context) {
	if h.Reports == nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "reporting not configured"})
		return
	}
	eventID := c.Param("event_id")
	out, err := h.Reports.OutreachSummary(c.Request.Context(), reporting.OutreachSummaryRequest{EventID: eventID})
	if err != nil {
		if errors.Is(err, reporting.ErrInvalidRequest) {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "event_id required"})
			return
		}
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "summary failed"})
		return
	}
	c.JSON(http.StatusOK, out)
}

// GetAttempt returns one attempt plus its extracted terms when present.
func (h Handlers) GetAttempt(c *gin.Context) {
	if h.Store == nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "store not configured"})
		return
	}
	id := c.Param("attempt_id")
	a, err := h.Store.Get(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, outreach.ErrNotFound) {
			c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "attempt not found"})
			return
		}
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "attempt lookup failed"})
		return
	}

	resp := gin.H{"attempt": a}
	if r, ok, err := h.Store.GetResult(c.Request.Context(), id); err == nil && ok {
		resp["result"] = r
	}
	c.JSON(http.StatusOK, resp)
}

// VenueHistory returns prior negotiations for the same physical venue.
func (h Handlers) VenueHistory(c *gin.Context) {
	if h.Reports == nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "reporting not configured"})
		return
	}
	placeID := c.Query("place_id")
	out, err := h.Reports.PastNegotiations(c.Request.Context(), reporting.PastNegotiationsRequest{GooglePlaceID: placeID})
	if err != nil {
		if errors.Is(err, reporting.ErrInvalidRequest) {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "place_id required"})
			return
		}
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "history lookup failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"history": out})
}
