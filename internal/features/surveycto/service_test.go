package surveycto

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"surveysync/internal/features/session"

	"go.uber.org/zap"
)

func newTestServiceWithServer(t *testing.T, handler http.Handler) (SurveyCTOService, session.Credentials) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	service := &SurveyCTOServiceImpl{
		Client: server.Client(),
		Logger: zap.NewNop(),
	}
	creds := session.Credentials{
		Username:  "collector@example.org",
		Password:  "secret",
		ServerURL: server.URL,
	}
	return service, creds
}

func TestListFormsFromFormList(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/formList", func(w http.ResponseWriter, r *http.Request) {
		if _, _, ok := r.BasicAuth(); !ok {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Header().Set("Content-Type", "text/xml")
		w.Write([]byte(`<?xml version="1.0" encoding="UTF-8"?>
<xforms xmlns="http://openrosa.org/xforms/xformsList">
  <xform>
    <formID>hh_survey</formID>
    <name>Household Survey</name>
    <version>214</version>
  </xform>
  <xform>
    <formID>clinic_visit</formID>
    <name></name>
    <version></version>
  </xform>
</xforms>`))
	})

	service, creds := newTestServiceWithServer(t, mux)

	forms, err := service.ListForms(context.Background(), creds)
	if err != nil {
		t.Fatal(err)
	}
	if len(forms) != 2 {
		t.Fatalf("len(forms) = %d, want 2", len(forms))
	}
	if forms[0].FormID != "hh_survey" || forms[0].Title != "Household Survey" || forms[0].Version != "214" {
		t.Errorf("forms[0] = %+v", forms[0])
	}
	// Blank names fall back to the id
	if forms[1].Title != "clinic_visit" {
		t.Errorf("forms[1].Title = %q, want the form id", forms[1].Title)
	}
}

func TestListFormsFallsBackToFormIDs(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/formList", func(w http.ResponseWriter, r *http.Request) {
		// Some servers expose the API but not OpenRosa
		w.WriteHeader(http.StatusNotFound)
	})
	mux.HandleFunc("/api/v2/forms/ids", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"formIds": ["hh_survey", " clinic_visit ", ""]}`))
	})

	service, creds := newTestServiceWithServer(t, mux)

	forms, err := service.ListForms(context.Background(), creds)
	if err != nil {
		t.Fatal(err)
	}
	if len(forms) != 2 {
		t.Fatalf("len(forms) = %d, want 2", len(forms))
	}
	if forms[1].FormID != "clinic_visit" {
		t.Errorf("forms[1].FormID = %q, want trimmed id", forms[1].FormID)
	}
}

func TestListFormsAuthFailure(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/formList", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	})

	service, creds := newTestServiceWithServer(t, mux)

	if _, err := service.ListForms(context.Background(), creds); !errors.Is(err, ErrAuthentication) {
		t.Errorf("err = %v, want ErrAuthentication", err)
	}
}

func TestFetchSubmissions(t *testing.T) {
	var requestedPath string
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v2/forms/data/wide/json/hh_survey", func(w http.ResponseWriter, r *http.Request) {
		requestedPath = r.URL.Path + "?" + r.URL.RawQuery
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`[{"KEY": "uuid-1", "age": "30"}, {"KEY": "uuid-2", "age": "31"}]`))
	})

	service, creds := newTestServiceWithServer(t, mux)

	since := time.Unix(1700000000, 0)
	records, err := service.FetchSubmissions(context.Background(), creds, "hh_survey", since)
	if err != nil {
		t.Fatal(err)
	}
	if len(records) != 2 {
		t.Fatalf("len(records) = %d, want 2", len(records))
	}
	if records[0]["KEY"] != "uuid-1" {
		t.Errorf("records[0] = %+v", records[0])
	}
	if want := "/api/v2/forms/data/wide/json/hh_survey?date=1700000000"; requestedPath != want {
		t.Errorf("requested %q, want %q", requestedPath, want)
	}
}

func TestFormFields(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v2/forms/data/wide/json/hh_survey", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`[
			{"KEY": "uuid-1", "age": "30", "SubmissionDate": "2026-08-01 10:00:00"},
			{"KEY": "uuid-2", "age": "31", "name": "Ana"}
		]`))
	})

	service, creds := newTestServiceWithServer(t, mux)

	fields, err := service.FormFields(context.Background(), creds, "hh_survey")
	if err != nil {
		t.Fatal(err)
	}

	byName := map[string]bool{}
	var keyField *int
	for i, f := range fields {
		byName[f.Name] = true
		if f.IsPrimaryKey {
			idx := i
			keyField = &idx
		}
	}
	// Union over all submissions, each field once
	for _, want := range []string{"KEY", "age", "SubmissionDate", "name"} {
		if !byName[want] {
			t.Errorf("field %q missing from %v", want, fields)
		}
	}
	if len(fields) != 4 {
		t.Errorf("len(fields) = %d, want 4", len(fields))
	}
	if keyField == nil || fields[*keyField].Name != "KEY" {
		t.Error("KEY not marked as the primary-key field")
	}
}

func TestFetchSubmissionsCooldown(t *testing.T) {
	tests := []struct {
		name        string
		status      int
		body        string
		wantSeconds int
	}{
		{"417 With Seconds", 417, "Please wait for 296 seconds before trying again.", 296},
		{"429 With Seconds", 429, "please WAIT for 12 seconds", 12},
		{"412 Without Seconds", 412, "Data pull temporarily blocked.", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mux := http.NewServeMux()
			mux.HandleFunc("/api/v2/forms/data/wide/json/hh_survey", func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			})

			service, creds := newTestServiceWithServer(t, mux)

			_, err := service.FetchSubmissions(context.Background(), creds, "hh_survey", time.Time{})
			var cooldown *CooldownError
			if !errors.As(err, &cooldown) {
				t.Fatalf("err = %v, want CooldownError", err)
			}
			if cooldown.StatusCode != tt.status || cooldown.Seconds != tt.wantSeconds {
				t.Errorf("cooldown = %+v", cooldown)
			}
		})
	}
}

func TestFetchSubmissionsNonJSON(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v2/forms/data/wide/json/hh_survey", func(w http.ResponseWriter, r *http.Request) {
		// Login pages arrive with status 200 and text/html
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte("<html><body>Please log in</body></html>"))
	})

	service, creds := newTestServiceWithServer(t, mux)

	_, err := service.FetchSubmissions(context.Background(), creds, "hh_survey", time.Time{})
	var parseErr *ParseError
	if !errors.As(err, &parseErr) {
		t.Errorf("err = %v, want ParseError", err)
	}
}

func TestCooldownErrorMessage(t *testing.T) {
	err := &CooldownError{StatusCode: 417, Seconds: 296}
	if got := err.Error(); got != "SurveyCTO blocked the data pull (status 417): retry after 296 seconds" {
		t.Errorf("Error() = %q", got)
	}

	bare := &CooldownError{StatusCode: 412}
	if got := bare.Error(); got != "SurveyCTO blocked the data pull (status 412)" {
		t.Errorf("Error() = %q", got)
	}
}

func TestParseCooldownSeconds(t *testing.T) {
	tests := []struct {
		name string
		body string
		want int
	}{
		{"Standard", "Please wait for 296 seconds before retrying", 296},
		{"Mixed Case", "WAIT FOR 5 SECONDS", 5},
		{"No Number", "please wait a while", 0},
		{"Empty", "", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := parseCooldownSeconds([]byte(tt.body)); got != tt.want {
				t.Errorf("parseCooldownSeconds(%q) = %d, want %d", tt.body, got, tt.want)
			}
		})
	}
}
