package api

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/oapi-codegen/runtime"
)

// ServerInterface represents all server handlers.
type ServerInterface interface {
	// Place a hold on tickets
	// (POST /reservations)
	CreateReservation(w http.ResponseWriter, r *http.Request)
	// List a buyer's reservations
	// (GET /reservations)
	ListReservations(w http.ResponseWriter, r *http.Request, params ListReservationsParams)
	// Get a reservation
	// (GET /reservations/{reservationId})
	GetReservation(w http.ResponseWriter, r *http.Request, reservationId string)
	// Cancel a reservation
	// (DELETE /reservations/{reservationId})
	CancelReservation(w http.ResponseWriter, r *http.Request, reservationId string)
	// Complete a reservation with a payment proof
	// (POST /reservations/{reservationId}/complete)
	CompleteReservation(w http.ResponseWriter, r *http.Request, reservationId string)
	// Get availability for a ticket type
	// (GET /availability/{eventId}/{ticketTypeId})
	GetAvailability(w http.ResponseWriter, r *http.Request, eventId string, ticketTypeId string)
	// List all reservations
	// (GET /admin/reservations)
	AdminListReservations(w http.ResponseWriter, r *http.Request, params AdminListReservationsParams)
	// Release every overdue hold
	// (POST /admin/reservations/sweep)
	AdminSweepExpired(w http.ResponseWriter, r *http.Request)
	// Drop every cached availability figure
	// (POST /admin/availability/invalidate)
	AdminInvalidateAvailability(w http.ResponseWriter, r *http.Request)
	// Check a ticket in
	// (POST /checkins)
	RecordCheckIn(w http.ResponseWriter, r *http.Request)
	// Get the check-in of a ticket
	// (GET /checkins/{tokenId})
	GetCheckIn(w http.ResponseWriter, r *http.Request, tokenId string)
	// List the check-ins of an event
	// (GET /events/{eventId}/checkins)
	ListEventCheckIns(w http.ResponseWriter, r *http.Request, eventId string)
}

// MiddlewareFunc wraps a single operation handler.
type MiddlewareFunc func(http.Handler) http.Handler

// ServerInterfaceWrapper binds request parameters before calling the handler.
type ServerInterfaceWrapper struct {
	Handler            ServerInterface
	HandlerMiddlewares []MiddlewareFunc
	ErrorHandlerFunc   func(w http.ResponseWriter, r *http.Request, err error)
}

// InvalidParamFormatError reports a path or query parameter that could not be bound.
type InvalidParamFormatError struct {
	ParamName string
	Err       error
}

func (e *InvalidParamFormatError) Error() string {
	return fmt.Sprintf("Invalid format for parameter %s: %s", e.ParamName, e.Err.Error())
}

func (e *InvalidParamFormatError) Unwrap() error {
	return e.Err
}

// RequiredParamError reports a missing required query parameter.
type RequiredParamError struct {
	ParamName string
}

func (e *RequiredParamError) Error() string {
	return fmt.Sprintf("Query argument %s is required, but not found", e.ParamName)
}

// WriteEnvelope writes env as the JSON response body with the given status.
func WriteEnvelope(w http.ResponseWriter, status int, env Envelope) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(env)
}

func defaultErrorHandler(w http.ResponseWriter, r *http.Request, err error) {
	WriteEnvelope(w, http.StatusBadRequest, Envelope{
		Error: &ErrorBody{Kind: "InvalidArgument", Message: err.Error()},
	})
}

func (siw *ServerInterfaceWrapper) serve(w http.ResponseWriter, r *http.Request, fn http.HandlerFunc) {
	handler := http.Handler(fn)
	for _, middleware := range siw.HandlerMiddlewares {
		handler = middleware(handler)
	}
	handler.ServeHTTP(w, r)
}

func (siw *ServerInterfaceWrapper) pathParam(w http.ResponseWriter, r *http.Request, name string, dest *string) bool {
	err := runtime.BindStyledParameterWithOptions("simple", name, chi.URLParam(r, name), dest, runtime.BindStyledParameterOptions{ParamLocation: runtime.ParamLocationPath, Explode: false, Required: true})
	if err != nil {
		siw.ErrorHandlerFunc(w, r, &InvalidParamFormatError{ParamName: name, Err: err})
		return false
	}
	return true
}

func (siw *ServerInterfaceWrapper) queryParam(w http.ResponseWriter, r *http.Request, name string, required bool, dest interface{}) bool {
	if err := runtime.BindQueryParameter("form", true, required, name, r.URL.Query(), dest); err != nil {
		siw.ErrorHandlerFunc(w, r, &InvalidParamFormatError{ParamName: name, Err: err})
		return false
	}
	return true
}

// CreateReservation operation middleware
func (siw *ServerInterfaceWrapper) CreateReservation(w http.ResponseWriter, r *http.Request) {
	siw.serve(w, r, siw.Handler.CreateReservation)
}

// ListReservations operation middleware
func (siw *ServerInterfaceWrapper) ListReservations(w http.ResponseWriter, r *http.Request) {
	var params ListReservationsParams

	if r.URL.Query().Get("buyer") == "" {
		siw.ErrorHandlerFunc(w, r, &RequiredParamError{ParamName: "buyer"})
		return
	}
	if !siw.queryParam(w, r, "buyer", true, &params.Buyer) ||
		!siw.queryParam(w, r, "status", false, &params.Status) ||
		!siw.queryParam(w, r, "limit", false, &params.Limit) ||
		!siw.queryParam(w, r, "offset", false, &params.Offset) {
		return
	}

	siw.serve(w, r, func(w http.ResponseWriter, r *http.Request) {
		siw.Handler.ListReservations(w, r, params)
	})
}

// GetReservation operation middleware
func (siw *ServerInterfaceWrapper) GetReservation(w http.ResponseWriter, r *http.Request) {
	var reservationId string
	if !siw.pathParam(w, r, "reservationId", &reservationId) {
		return
	}

	siw.serve(w, r, func(w http.ResponseWriter, r *http.Request) {
		siw.Handler.GetReservation(w, r, reservationId)
	})
}

// CancelReservation operation middleware
func (siw *ServerInterfaceWrapper) CancelReservation(w http.ResponseWriter, r *http.Request) {
	var reservationId string
	if !siw.pathParam(w, r, "reservationId", &reservationId) {
		return
	}

	siw.serve(w, r, func(w http.ResponseWriter, r *http.Request) {
		siw.Handler.CancelReservation(w, r, reservationId)
	})
}

// CompleteReservation operation middleware
func (siw *ServerInterfaceWrapper) CompleteReservation(w http.ResponseWriter, r *http.Request) {
	var reservationId string
	if !siw.pathParam(w, r, "reservationId", &reservationId) {
		return
	}

	siw.serve(w, r, func(w http.ResponseWriter, r *http.Request) {
		siw.Handler.CompleteReservation(w, r, reservationId)
	})
}

// GetAvailability operation middleware
func (siw *ServerInterfaceWrapper) GetAvailability(w http.ResponseWriter, r *http.Request) {
	var eventId, ticketTypeId string
	if !siw.pathParam(w, r, "eventId", &eventId) || !siw.pathParam(w, r, "ticketTypeId", &ticketTypeId) {
		return
	}

	siw.serve(w, r, func(w http.ResponseWriter, r *http.Request) {
		siw.Handler.GetAvailability(w, r, eventId, ticketTypeId)
	})
}

// AdminListReservations operation middleware
func (siw *ServerInterfaceWrapper) AdminListReservations(w http.ResponseWriter, r *http.Request) {
	var params AdminListReservationsParams

	if !siw.queryParam(w, r, "eventId", false, &params.EventId) ||
		!siw.queryParam(w, r, "status", false, &params.Status) ||
		!siw.queryParam(w, r, "page", false, &params.Page) ||
		!siw.queryParam(w, r, "pageSize", false, &params.PageSize) {
		return
	}

	siw.serve(w, r, func(w http.ResponseWriter, r *http.Request) {
		siw.Handler.AdminListReservations(w, r, params)
	})
}

// AdminSweepExpired operation middleware
func (siw *ServerInterfaceWrapper) AdminSweepExpired(w http.ResponseWriter, r *http.Request) {
	siw.serve(w, r, siw.Handler.AdminSweepExpired)
}

// AdminInvalidateAvailability operation middleware
func (siw *ServerInterfaceWrapper) AdminInvalidateAvailability(w http.ResponseWriter, r *http.Request) {
	siw.serve(w, r, siw.Handler.AdminInvalidateAvailability)
}

// RecordCheckIn operation middleware
func (siw *ServerInterfaceWrapper) RecordCheckIn(w http.ResponseWriter, r *http.Request) {
	siw.serve(w, r, siw.Handler.RecordCheckIn)
}

// GetCheckIn operation middleware
func (siw *ServerInterfaceWrapper) GetCheckIn(w http.ResponseWriter, r *http.Request) {
	var tokenId string
	if !siw.pathParam(w, r, "tokenId", &tokenId) {
		return
	}

	siw.serve(w, r, func(w http.ResponseWriter, r *http.Request) {
		siw.Handler.GetCheckIn(w, r, tokenId)
	})
}

// ListEventCheckIns operation middleware
func (siw *ServerInterfaceWrapper) ListEventCheckIns(w http.ResponseWriter, r *http.Request) {
	var eventId string
	if !siw.pathParam(w, r, "eventId", &eventId) {
		return
	}

	siw.serve(w, r, func(w http.ResponseWriter, r *http.Request) {
		siw.Handler.ListEventCheckIns(w, r, eventId)
	})
}

// ChiServerOptions configures HandlerWithOptions.
type ChiServerOptions struct {
	BaseURL          string
	BaseRouter       chi.Router
	Middlewares      []MiddlewareFunc
	ErrorHandlerFunc func(w http.ResponseWriter, r *http.Request, err error)
}

// Handler creates http.Handler with routing matching the API.
func Handler(si ServerInterface) http.Handler {
	return HandlerWithOptions(si, ChiServerOptions{})
}

// HandlerFromMux creates http.Handler with routing matching the API on top of an existing router.
func HandlerFromMux(si ServerInterface, r chi.Router) http.Handler {
	return HandlerWithOptions(si, ChiServerOptions{BaseRouter: r})
}

// HandlerWithOptions creates http.Handler with additional options.
func HandlerWithOptions(si ServerInterface, options ChiServerOptions) http.Handler {
	r := options.BaseRouter
	if r == nil {
		r = chi.NewRouter()
	}
	if options.ErrorHandlerFunc == nil {
		options.ErrorHandlerFunc = defaultErrorHandler
	}
	wrapper := ServerInterfaceWrapper{
		Handler:            si,
		HandlerMiddlewares: options.Middlewares,
		ErrorHandlerFunc:   options.ErrorHandlerFunc,
	}

	r.Group(func(r chi.Router) {
		r.Post(options.BaseURL+"/reservations", wrapper.CreateReservation)
		r.Get(options.BaseURL+"/reservations", wrapper.ListReservations)
		r.Get(options.BaseURL+"/reservations/{reservationId}", wrapper.GetReservation)
		r.Delete(options.BaseURL+"/reservations/{reservationId}", wrapper.CancelReservation)
		r.Post(options.BaseURL+"/reservations/{reservationId}/complete", wrapper.CompleteReservation)
		r.Get(options.BaseURL+"/availability/{eventId}/{ticketTypeId}", wrapper.GetAvailability)
		r.Get(options.BaseURL+"/admin/reservations", wrapper.AdminListReservations)
		r.Post(options.BaseURL+"/admin/reservations/sweep", wrapper.AdminSweepExpired)
		r.Post(options.BaseURL+"/admin/availability/invalidate", wrapper.AdminInvalidateAvailability)
		r.Post(options.BaseURL+"/checkins", wrapper.RecordCheckIn)
		r.Get(options.BaseURL+"/checkins/{tokenId}", wrapper.GetCheckIn)
		r.Get(options.BaseURL+"/events/{eventId}/checkins", wrapper.ListEventCheckIns)
	})

	return r
}
