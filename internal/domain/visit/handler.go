package visit

import (
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/clinichq/clinic/internal/domain/billing"
	"github.com/clinichq/clinic/internal/platform/auth"
	"github.com/clinichq/clinic/pkg/pagination"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	readGroup := api.Group("", auth.RequireRole(auth.RoleAdmin, auth.RoleDoctor, auth.RoleNurse, auth.RoleReceptionist))
	readGroup.GET("/appointments", h.ListAppointments)
	readGroup.GET("/appointments/:id", h.GetAppointment)
	readGroup.GET("/appointments/:id/record", h.GetRecord)
	readGroup.GET("/queue", h.Queue)
	readGroup.GET("/stats", h.Stats)
	readGroup.GET("/patients/:patientId/appointments", h.ListByPatient)
	readGroup.GET("/patients/:patientId/records", h.ListRecordsByPatient)

	deskGroup := api.Group("", auth.RequireRole(auth.RoleAdmin, auth.RoleNurse, auth.RoleReceptionist))
	deskGroup.POST("/appointments", h.CreateAppointment)
	deskGroup.POST("/appointments/:id/confirm", h.ConfirmAppointment)
	deskGroup.POST("/appointments/:id/cancel", h.CancelAppointment)
	deskGroup.POST("/appointments/:id/pay", h.ProcessPayment)

	nurseGroup := api.Group("", auth.RequireRole(auth.RoleAdmin, auth.RoleNurse))
	nurseGroup.POST("/appointments/:id/screen", h.Screen)

	doctorGroup := api.Group("", auth.RequireRole(auth.RoleAdmin, auth.RoleDoctor))
	doctorGroup.POST("/appointments/:id/complete", h.CompleteConsultation)
}

// httpError maps domain errors to HTTP statuses: validation failures are
// 400, illegal lifecycle moves are 409.
func httpError(err error) *echo.HTTPError {
	switch {
	case errors.Is(err, ErrValidation):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	case errors.Is(err, ErrInvalidTransition):
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	case errors.Is(err, billing.ErrInsufficientPayment):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
}

func apptID(c echo.Context) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return uuid.Nil, echo.NewHTTPError(http.StatusBadRequest, "invalid appointment id")
	}
	return id, nil
}

// queryDate reads the ?date=YYYY-MM-DD parameter, defaulting to today.
func queryDate(c echo.Context) (time.Time, error) {
	if v := c.QueryParam("date"); v != "" {
		parsed, err := time.Parse("2006-01-02", v)
		if err != nil {
			return time.Time{}, echo.NewHTTPError(http.StatusBadRequest, "date must be YYYY-MM-DD")
		}
		return parsed, nil
	}
	now := time.Now().UTC()
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC), nil
}

func (h *Handler) CreateAppointment(c echo.Context) error {
	var a Appointment
	if err := c.Bind(&a); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := h.svc.CreateAppointment(c.Request().Context(), &a); err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, a)
}

func (h *Handler) GetAppointment(c echo.Context) error {
	id, err := apptID(c)
	if err != nil {
		return err
	}
	a, err := h.svc.GetAppointment(c.Request().Context(), id)
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "appointment not found")
	}
	return c.JSON(http.StatusOK, a)
}

func (h *Handler) ListAppointments(c echo.Context) error {
	date, err := queryDate(c)
	if err != nil {
		return err
	}
	p := pagination.FromContext(c)
	appts, total, err := h.svc.ListAppointments(c.Request().Context(), date, p.Limit, p.Offset)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(appts, total, p.Limit, p.Offset))
}

func (h *Handler) ListByPatient(c echo.Context) error {
	patientID, err := uuid.Parse(c.Param("patientId"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid patient id")
	}
	p := pagination.FromContext(c)
	appts, total, err := h.svc.ListAppointmentsByPatient(c.Request().Context(), patientID, p.Limit, p.Offset)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(appts, total, p.Limit, p.Offset))
}

func (h *Handler) ConfirmAppointment(c echo.Context) error {
	id, err := apptID(c)
	if err != nil {
		return err
	}
	a, err := h.svc.ConfirmAppointment(c.Request().Context(), id)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, a)
}

func (h *Handler) Screen(c echo.Context) error {
	id, err := apptID(c)
	if err != nil {
		return err
	}
	var input ScreenInput
	if err := c.Bind(&input); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	a, err := h.svc.Screen(c.Request().Context(), id, input)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, a)
}

type completeResponse struct {
	Record     *MedicalRecord   `json:"record"`
	Shortfalls []StockShortfall `json:"shortfalls,omitempty"`
}

func (h *Handler) CompleteConsultation(c echo.Context) error {
	id, err := apptID(c)
	if err != nil {
		return err
	}
	var input ConsultationInput
	if err := c.Bind(&input); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	record, shortfalls, err := h.svc.CompleteConsultation(c.Request().Context(), id, input)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, completeResponse{Record: record, Shortfalls: shortfalls})
}

type paymentResponse struct {
	Transaction *billing.Transaction `json:"transaction"`
	Change      float64              `json:"change"`
}

func (h *Handler) ProcessPayment(c echo.Context) error {
	id, err := apptID(c)
	if err != nil {
		return err
	}
	var req PaymentRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	tx, change, err := h.svc.ProcessPayment(c.Request().Context(), id, req)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, paymentResponse{Transaction: tx, Change: change})
}

func (h *Handler) CancelAppointment(c echo.Context) error {
	id, err := apptID(c)
	if err != nil {
		return err
	}
	a, err := h.svc.Cancel(c.Request().Context(), id)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, a)
}

func (h *Handler) Queue(c echo.Context) error {
	date, err := queryDate(c)
	if err != nil {
		return err
	}
	appts, err := h.svc.Queue(c.Request().Context(), date)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, appts)
}

func (h *Handler) Stats(c echo.Context) error {
	date, err := queryDate(c)
	if err != nil {
		return err
	}
	stats, err := h.svc.Stats(c.Request().Context(), date)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, stats)
}

func (h *Handler) GetRecord(c echo.Context) error {
	id, err := apptID(c)
	if err != nil {
		return err
	}
	record, err := h.svc.GetRecordByAppointment(c.Request().Context(), id)
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "medical record not found")
	}
	return c.JSON(http.StatusOK, record)
}

func (h *Handler) ListRecordsByPatient(c echo.Context) error {
	patientID, err := uuid.Parse(c.Param("patientId"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid patient id")
	}
	p := pagination.FromContext(c)
	records, total, err := h.svc.ListRecordsByPatient(c.Request().Context(), patientID, p.Limit, p.Offset)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(records, total, p.Limit, p.Offset))
}
