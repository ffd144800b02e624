package dataset

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/mrcode/hrt-tracker/internal/models"
)

func sampleDataset() Dataset {
	return Dataset{
		BodyWeightKG: 68,
		Events: []models.DoseEvent{
			{ID: "inj-1", Route: models.RouteInjection, TimeH: 0, DoseMG: 5, Ester: models.EsterValerate},
			{Route: models.RouteOral, TimeH: 12, DoseMG: 2},
		},
		Measurements: []models.LabMeasurement{
			{ID: "lab-1", TimeH: 72, ConcPGmL: 180},
			{TimeH: 96, ConcPGmL: 150, Ignored: true},
		},
	}
}

func TestClient_Fetch_Remote(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/subject/datasets/latest" {
			t.Errorf("Unexpected path: %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer secret-token" {
			t.Errorf("Authorization = %q, want bearer token", got)
		}
		if got := r.Header.Get("Accept"); got != "application/json" {
			t.Errorf("Accept = %q, want application/json", got)
		}

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(sampleDataset())
	}))
	defer server.Close()

	client := NewClient("secret-token")
	ds, err := client.Fetch(context.Background(), server.URL+"/subject/datasets/latest")
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}

	if ds.BodyWeightKG != 68 {
		t.Errorf("BodyWeightKG = %v, want 68", ds.BodyWeightKG)
	}
	if len(ds.Events) != 2 || ds.Events[0].Ester != models.EsterValerate {
		t.Errorf("Events = %+v, want two events with valerate first", ds.Events)
	}
	if len(ds.Measurements) != 2 || !ds.Measurements[1].Ignored {
		t.Errorf("Measurements = %+v, want ignored flag preserved", ds.Measurements)
	}
}

func TestClient_Fetch_NoToken(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "" {
			t.Errorf("Authorization = %q, want none", got)
		}
		_, _ = w.Write([]byte(`{"events":[],"measurements":[]}`))
	}))
	defer server.Close()

	if _, err := NewClient("").Fetch(context.Background(), server.URL); err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
}

func TestClient_Fetch_HTTPError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte("bad token"))
	}))
	defer server.Close()

	_, err := NewClient("wrong").Fetch(context.Background(), server.URL)
	if err == nil {
		t.Fatal("Fetch() expected error for 401")
	}
	if !strings.Contains(err.Error(), "401") || !strings.Contains(err.Error(), "bad token") {
		t.Errorf("error = %v, want status and body", err)
	}
}

func TestClient_Fetch_InvalidJSON(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("not json"))
	}))
	defer server.Close()

	_, err := NewClient("").Fetch(context.Background(), server.URL)
	if err == nil || !strings.Contains(err.Error(), "parsing dataset") {
		t.Errorf("Fetch() error = %v, want parse error", err)
	}
}

func TestClient_Fetch_CancelledContext(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{}`))
	}))
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewClient("").Fetch(ctx, server.URL)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Fetch() error = %v, want context.Canceled", err)
	}
}

func TestClient_Fetch_Files(t *testing.T) {
	dir := t.TempDir()

	jsonData, err := json.Marshal(sampleDataset())
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	yamlData := `bodyWeightKG: 68
events:
  - id: inj-1
    route: injection
    timeH: 0
    doseMG: 5
    ester: EV
  - route: patch
    timeH: 0
    doseMG: 0.1
    durationH: 84
measurements:
  - id: lab-1
    timeH: 72
    concPGmL: 180
`

	tests := []struct {
		name    string
		file    string
		content []byte
	}{
		{"JSON", "data.json", jsonData},
		{"JSON without extension", "data", jsonData},
		{"YAML", "data.yaml", []byte(yamlData)},
		{"YML", "DATA.YML", []byte(yamlData)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(dir, tt.file)
			if err := os.WriteFile(path, tt.content, 0600); err != nil {
				t.Fatalf("WriteFile() error = %v", err)
			}

			ds, err := NewClient("").Fetch(context.Background(), path)
			if err != nil {
				t.Fatalf("Fetch() error = %v", err)
			}
			if ds.BodyWeightKG != 68 {
				t.Errorf("BodyWeightKG = %v, want 68", ds.BodyWeightKG)
			}
			if ds.Events[0].ID != "inj-1" || ds.Events[0].Route != models.RouteInjection {
				t.Errorf("Events[0] = %+v, want inj-1 injection", ds.Events[0])
			}
			if ds.Measurements[0].ConcPGmL != 180 {
				t.Errorf("Measurements[0].ConcPGmL = %v, want 180", ds.Measurements[0].ConcPGmL)
			}
		})
	}
}

func TestClient_Fetch_MissingFile(t *testing.T) {
	_, err := NewClient("").Fetch(context.Background(), filepath.Join(t.TempDir(), "missing.json"))
	if !errors.Is(err, os.ErrNotExist) {
		t.Errorf("Fetch() error = %v, want not exist", err)
	}
}

func TestClient_Fetch_NoLocation(t *testing.T) {
	for _, location := range []string{"", "   "} {
		if _, err := NewClient("").Fetch(context.Background(), location); !errors.Is(err, ErrNoLocation) {
			t.Errorf("Fetch(%q) error = %v, want ErrNoLocation", location, err)
		}
	}
}

func TestDecode_FillsMissingIDs(t *testing.T) {
	data, err := json.Marshal(sampleDataset())
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}

	ds, err := Decode(data, formatJSON)
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}

	if ds.Events[0].ID != "inj-1" || ds.Measurements[0].ID != "lab-1" {
		t.Error("existing IDs should be kept")
	}
	if _, err := uuid.Parse(ds.Events[1].ID); err != nil {
		t.Errorf("Events[1].ID = %q, want a UUID", ds.Events[1].ID)
	}
	if _, err := uuid.Parse(ds.Measurements[1].ID); err != nil {
		t.Errorf("Measurements[1].ID = %q, want a UUID", ds.Measurements[1].ID)
	}
}

func TestDecode_UnsupportedFormat(t *testing.T) {
	if _, err := Decode([]byte("{}"), "toml"); !errors.Is(err, ErrUnsupportedInput) {
		t.Errorf("Decode() error = %v, want ErrUnsupportedInput", err)
	}
}

func TestDataset_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(d *Dataset)
		wantErr bool
	}{
		{"Valid", func(*Dataset) {}, false},
		{"No data", func(d *Dataset) { d.Events, d.Measurements = nil, nil }, false},
		{"Zero weight", func(d *Dataset) { d.BodyWeightKG = 0 }, true},
		{"NaN weight", func(d *Dataset) { d.BodyWeightKG = math.NaN() }, true},
		{"Unknown route", func(d *Dataset) { d.Events[0].Route = "nasal" }, true},
		{"Negative dose", func(d *Dataset) { d.Events[1].DoseMG = -1 }, true},
		{"Infinite measurement time", func(d *Dataset) { d.Measurements[0].TimeH = math.Inf(1) }, true},
		{"Negative concentration", func(d *Dataset) { d.Measurements[0].ConcPGmL = -3 }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ds := sampleDataset()
			tt.mutate(&ds)
			err := ds.Validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrInvalidDataset) {
				t.Errorf("Validate() error = %v, want ErrInvalidDataset", err)
			}
		})
	}
}
