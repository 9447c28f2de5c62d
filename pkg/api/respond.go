package api

import (
	"encoding/json"
	"net/http"
)

// Canonical error details shared across handlers. The exact strings are
// part of the simulated API contract.
const (
	detailNotFound       = "Not Found"
	detailLoggedIn       = "must be logged in to perform that action"
	detailUserMismatch   = "current user does not match requested user"
	detailMissingFilter  = "missing or invalid filter"
	detailInvalidBody    = "invalid request body"
	detailMissingFields  = "missing required fields"
	detailInvalidJSON    = "invalid json request"
	detailEmptyEmail     = "empty email rejected"
	detailNotOwner       = "You are not an owner of this crate"
	detailVerifyEmail    = "You must verify your email address to create a Trusted Publishing config"
	detailTokenNoEmail   = "Email belonging to token not found."
	detailOwnersRemoved  = "owners successfully removed"
	detailInvalidSeek    = "invalid seek parameter"
	detailVersionMissing = "crate `%s` does not have a version `%s`"
)

type errorJSON struct {
	Detail string `json:"detail"`
}

type errorsJSON struct {
	Errors []errorJSON `json:"errors"`
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, errorsJSON{Errors: []errorJSON{{Detail: detail}}})
}

func writeNotFound(w http.ResponseWriter) {
	writeError(w, http.StatusNotFound, detailNotFound)
}

func writeForbidden(w http.ResponseWriter) {
	writeError(w, http.StatusForbidden, detailLoggedIn)
}
