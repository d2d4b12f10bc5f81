package api

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"emailbot-backend/internal/database"
	"emailbot-backend/internal/license"

	"github.com/gin-gonic/gin"
)

// stubLicenseStore backs the license service with in-memory rows so handler
// flows can run without Postgres
type stubLicenseStore struct {
	licenses    map[string]*database.License
	activations map[string]*database.Activation
	nextID      int
}

func newStubLicenseStore() *stubLicenseStore {
	return &stubLicenseStore{
		licenses:    make(map[string]*database.License),
		activations: make(map[string]*database.Activation),
	}
}

func (s *stubLicenseStore) id() string {
	s.nextID++
	return fmt.Sprintf("id-%d", s.nextID)
}

func (s *stubLicenseStore) CreateLicense(_ context.Context, lic *database.License) error {
	if lic.ID == "" {
		lic.ID = s.id()
	}
	stored := *lic
	s.licenses[lic.ID] = &stored
	return nil
}

func (s *stubLicenseStore) GetLicenseByKey(_ context.Context, key string) (*database.License, error) {
	for _, lic := range s.licenses {
		if lic.LicenseKey == key {
			copied := *lic
			return &copied, nil
		}
	}
	return nil, nil
}

func (s *stubLicenseStore) GetActiveLicenseByKey(ctx context.Context, key string) (*database.License, error) {
	lic, err := s.GetLicenseByKey(ctx, key)
	if err != nil || lic == nil || !lic.IsActive {
		return nil, err
	}
	return lic, nil
}

func (s *stubLicenseStore) GetLicenseByID(_ context.Context, id string) (*database.License, error) {
	lic, ok := s.licenses[id]
	if !ok {
		return nil, nil
	}
	copied := *lic
	return &copied, nil
}

func (s *stubLicenseStore) ListLicenses(_ context.Context) ([]database.LicenseWithUsage, error) {
	return nil, nil
}

func (s *stubLicenseStore) UpdateLicense(_ context.Context, id string, _ database.UpdateLicenseInput) error {
	if _, ok := s.licenses[id]; !ok {
		return fmt.Errorf("license not found: %s", id)
	}
	return nil
}

func (s *stubLicenseStore) DeactivateLicense(_ context.Context, id string) error {
	lic, ok := s.licenses[id]
	if !ok {
		return fmt.Errorf("license not found: %s", id)
	}
	lic.IsActive = false
	return nil
}

func (s *stubLicenseStore) GetActivation(_ context.Context, licenseID, machineID string) (*database.Activation, error) {
	for _, a := range s.activations {
		if a.LicenseID == licenseID && a.MachineID == machineID && !a.Revoked {
			copied := *a
			return &copied, nil
		}
	}
	return nil, nil
}

func (s *stubLicenseStore) GetActivationByID(_ context.Context, id string) (*database.Activation, error) {
	a, ok := s.activations[id]
	if !ok {
		return nil, nil
	}
	copied := *a
	return &copied, nil
}

func (s *stubLicenseStore) CountActivations(_ context.Context, licenseID string) (int, error) {
	count := 0
	for _, a := range s.activations {
		if a.LicenseID == licenseID && !a.Revoked {
			count++
		}
	}
	return count, nil
}

func (s *stubLicenseStore) CreateActivation(_ context.Context, activation *database.Activation) error {
	if activation.ID == "" {
		activation.ID = s.id()
	}
	activation.LastSeen = time.Now()
	stored := *activation
	s.activations[activation.ID] = &stored
	return nil
}

func (s *stubLicenseStore) TouchActivation(_ context.Context, id string, _ *string, _ *string) error {
	if _, ok := s.activations[id]; !ok {
		return fmt.Errorf("activation not found: %s", id)
	}
	return nil
}

func (s *stubLicenseStore) RefreshActivationLastSeen(_ context.Context, id string) (time.Time, error) {
	a, ok := s.activations[id]
	if !ok {
		return time.Time{}, fmt.Errorf("activation not found: %s", id)
	}
	a.LastSeen = time.Now()
	return a.LastSeen, nil
}

func (s *stubLicenseStore) RevokeActivation(_ context.Context, id string) error {
	a, ok := s.activations[id]
	if !ok || a.Revoked {
		return fmt.Errorf("activation not found: %s", id)
	}
	a.Revoked = true
	return nil
}

func (s *stubLicenseStore) ListActivations(_ context.Context, licenseID string) ([]database.Activation, error) {
	var out []database.Activation
	for _, a := range s.activations {
		if a.LicenseID == licenseID {
			out = append(out, *a)
		}
	}
	return out, nil
}

func jsonContext(t *testing.T, method, body string) (*gin.Context, *httptest.ResponseRecorder) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(method, "/", strings.NewReader(body))
	c.Request.Header.Set("Content-Type", "application/json")
	return c, w
}

// Revoking an activation must stop the machine from validating on its very
// next call, even while other machines on the key keep passing.
func TestRevokeActivationStopsValidation(t *testing.T) {
	store := newStubLicenseStore()
	svc := license.NewService(store)
	server := &Server{licenseService: svc}

	lic, err := svc.Create(context.Background(), license.CreateRequest{MaxActivations: 2}, "")
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	var activationIDs []string
	for _, machine := range []string{"machine-1", "machine-2"} {
		result, err := svc.Activate(context.Background(), license.ActivateRequest{
			LicenseKey: lic.LicenseKey,
			MachineID:  machine,
		}, "", "")
		if err != nil {
			t.Fatalf("Activate(%s) error = %v", machine, err)
		}
		activationIDs = append(activationIDs, result.ActivationID)
	}

	validateBody := fmt.Sprintf(`{"license_key":%q,"machine_id":"machine-1"}`, lic.LicenseKey)
	c, w := jsonContext(t, http.MethodPost, validateBody)
	server.handleValidateLicense(c)
	if w.Code != http.StatusOK {
		t.Fatalf("validate before revoke status = %d, want %d: %s", w.Code, http.StatusOK, w.Body.String())
	}

	c, w = jsonContext(t, http.MethodPost, "")
	c.Params = gin.Params{{Key: "id", Value: activationIDs[0]}}
	server.handleRevokeActivation(c)
	if w.Code != http.StatusOK {
		t.Fatalf("revoke status = %d, want %d: %s", w.Code, http.StatusOK, w.Body.String())
	}

	c, w = jsonContext(t, http.MethodPost, validateBody)
	server.handleValidateLicense(c)
	if w.Code != http.StatusForbidden {
		t.Errorf("validate after revoke status = %d, want %d: %s", w.Code, http.StatusForbidden, w.Body.String())
	}

	// The other machine is untouched
	c, w = jsonContext(t, http.MethodPost,
		fmt.Sprintf(`{"license_key":%q,"machine_id":"machine-2"}`, lic.LicenseKey))
	server.handleValidateLicense(c)
	if w.Code != http.StatusOK {
		t.Errorf("other machine status = %d, want %d: %s", w.Code, http.StatusOK, w.Body.String())
	}
}

func TestRevokeActivationUnknownID(t *testing.T) {
	server := &Server{licenseService: license.NewService(newStubLicenseStore())}

	c, w := jsonContext(t, http.MethodPost, "")
	c.Params = gin.Params{{Key: "id", Value: "missing"}}
	server.handleRevokeActivation(c)
	if w.Code != http.StatusForbidden {
		t.Errorf("unknown activation status = %d, want %d: %s", w.Code, http.StatusForbidden, w.Body.String())
	}
}
