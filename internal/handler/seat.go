package handler

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/coldscholor/shared-room/internal/model"
	"github.com/coldscholor/shared-room/internal/service"
)

// SeatHandler exposes read-only seat browsing.  Status answers are
// advisory; booking re-checks under the per-seat lock.
type SeatHandler struct {
	Seats *service.SeatService
}

func NewSeatHandler(seats *service.SeatService) *SeatHandler {
	return &SeatHandler{Seats: seats}
}

type seatResp struct {
	ID               uint64 `json:"id"`
	RoomID           uint64 `json:"room_id"`
	SeatNumber       string `json:"seat_number"`
	SeatType         string `json:"seat_type"`
	Status           string `json:"status"`
	HourlyPriceCents uint32 `json:"hourly_price_cents"`
	Description      string `json:"description,omitempty"`
}

func toSeatResp(s *model.Seat) seatResp {
	return seatResp{
		ID:               s.ID,
		RoomID:           s.RoomID,
		SeatNumber:       s.SeatNumber,
		SeatType:         s.SeatType,
		Status:           string(s.Status),
		HourlyPriceCents: s.HourlyPriceCents,
		Description:      s.Description,
	}
}

// ListAvailable returns the FREE seats of a room:
// GET /api/v1/rooms/:room_id/seats/available.
func (h *SeatHandler) ListAvailable(c echo.Context) error {
	roomID, err := strconv.ParseUint(c.Param("room_id"), 10, 64)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid room id"})
	}
	seats, err := h.Seats.ListAvailable(c.Request().Context(), roomID)
	if err != nil {
		return bookingError(c, err)
	}
	out := make([]seatResp, 0, len(seats))
	for i := range seats {
		out = append(out, toSeatResp(&seats[i]))
	}
	return c.JSON(http.StatusOK, echo.Map{"seats": out})
}

// Get returns one seat with its live status: GET /api/v1/seats/:id.
func (h *SeatHandler) Get(c echo.Context) error {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid id"})
	}
	seat, err := h.Seats.GetSeat(c.Request().Context(), id)
	if err != nil {
		return bookingError(c, err)
	}
	return c.JSON(http.StatusOK, toSeatResp(seat))
}
