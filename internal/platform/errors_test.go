package platform

import (
	"errors"
	"net/http"
	"testing"

	"livepulse/internal/ingesterr"
)

func TestClassifyStatusUnauthorizedIsCredentialInvalid(t *testing.T) {
	err := classifyStatus("op", http.StatusUnauthorized, businessErrorEnvelope{}, nil)
	if !errors.Is(err, ingesterr.ErrCredentialInvalid) {
		t.Fatalf("expected ErrCredentialInvalid, got %v", err)
	}
}

func TestClassifyStatusForbiddenIsCredentialInvalid(t *testing.T) {
	err := classifyStatus("op", http.StatusForbidden, businessErrorEnvelope{}, nil)
	if !errors.Is(err, ingesterr.ErrCredentialInvalid) {
		t.Fatalf("expected ErrCredentialInvalid, got %v", err)
	}
}

func TestClassifyStatusServerErrorIsTransient(t *testing.T) {
	err := classifyStatus("op", http.StatusInternalServerError, businessErrorEnvelope{}, nil)
	if !errors.Is(err, ingesterr.ErrTransient) {
		t.Fatalf("expected ErrTransient, got %v", err)
	}
}

func TestClassifyStatusClientErrorIsBusiness(t *testing.T) {
	err := classifyStatus("op", http.StatusBadRequest, businessErrorEnvelope{}, []byte("bad"))
	if !errors.Is(err, ingesterr.ErrBusiness) {
		t.Fatalf("expected ErrBusiness, got %v", err)
	}
}

func TestClassifyStatusBusinessEnvelopeOn200(t *testing.T) {
	err := classifyStatus("op", http.StatusOK, businessErrorEnvelope{StatusCode: 4001, StatusMsg: "rate limited"}, nil)
	if !errors.Is(err, ingesterr.ErrBusiness) {
		t.Fatalf("expected ErrBusiness, got %v", err)
	}
}

func TestClassifyStatusOKWithNoEnvelopeIsNil(t *testing.T) {
	if err := classifyStatus("op", http.StatusOK, businessErrorEnvelope{}, nil); err != nil {
		t.Fatalf("expected nil error for clean 200, got %v", err)
	}
}
