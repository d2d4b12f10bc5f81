package license

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"emailbot-backend/internal/database"
)

// fakeStore keeps licenses and activations in memory, mirroring the
// lifecycle rules the SQL layer enforces: key lookups respect is_active,
// machine lookups skip revoked rows.
type fakeStore struct {
	licenses    map[string]*database.License
	activations map[string]*database.Activation
	nextID      int
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		licenses:    make(map[string]*database.License),
		activations: make(map[string]*database.Activation),
	}
}

func (f *fakeStore) id() string {
	f.nextID++
	return fmt.Sprintf("id-%d", f.nextID)
}

func (f *fakeStore) CreateLicense(_ context.Context, lic *database.License) error {
	if lic.ID == "" {
		lic.ID = f.id()
	}
	lic.CreatedAt = time.Now()
	lic.UpdatedAt = lic.CreatedAt
	stored := *lic
	f.licenses[lic.ID] = &stored
	return nil
}

func (f *fakeStore) GetLicenseByKey(_ context.Context, key string) (*database.License, error) {
	for _, lic := range f.licenses {
		if lic.LicenseKey == key {
			copied := *lic
			return &copied, nil
		}
	}
	return nil, nil
}

func (f *fakeStore) GetActiveLicenseByKey(ctx context.Context, key string) (*database.License, error) {
	lic, err := f.GetLicenseByKey(ctx, key)
	if err != nil || lic == nil || !lic.IsActive {
		return nil, err
	}
	return lic, nil
}

func (f *fakeStore) GetLicenseByID(_ context.Context, id string) (*database.License, error) {
	lic, ok := f.licenses[id]
	if !ok {
		return nil, nil
	}
	copied := *lic
	return &copied, nil
}

func (f *fakeStore) ListLicenses(_ context.Context) ([]database.LicenseWithUsage, error) {
	return nil, nil
}

func (f *fakeStore) UpdateLicense(_ context.Context, id string, input database.UpdateLicenseInput) error {
	lic, ok := f.licenses[id]
	if !ok {
		return fmt.Errorf("license not found: %s", id)
	}
	if input.MaxActivations != nil {
		lic.MaxActivations = *input.MaxActivations
	}
	if input.ExpiresAt != nil {
		lic.ExpiresAt = *input.ExpiresAt
	}
	if input.IsActive != nil {
		lic.IsActive = *input.IsActive
	}
	if input.Notes != nil {
		lic.Notes = *input.Notes
	}
	return nil
}

func (f *fakeStore) DeactivateLicense(_ context.Context, id string) error {
	lic, ok := f.licenses[id]
	if !ok {
		return fmt.Errorf("license not found: %s", id)
	}
	lic.IsActive = false
	return nil
}

func (f *fakeStore) GetActivation(_ context.Context, licenseID, machineID string) (*database.Activation, error) {
	for _, a := range f.activations {
		if a.LicenseID == licenseID && a.MachineID == machineID && !a.Revoked {
			copied := *a
			return &copied, nil
		}
	}
	return nil, nil
}

func (f *fakeStore) GetActivationByID(_ context.Context, id string) (*database.Activation, error) {
	a, ok := f.activations[id]
	if !ok {
		return nil, nil
	}
	copied := *a
	return &copied, nil
}

func (f *fakeStore) CountActivations(_ context.Context, licenseID string) (int, error) {
	count := 0
	for _, a := range f.activations {
		if a.LicenseID == licenseID && !a.Revoked {
			count++
		}
	}
	return count, nil
}

func (f *fakeStore) CreateActivation(_ context.Context, activation *database.Activation) error {
	if activation.ID == "" {
		activation.ID = f.id()
	}
	activation.LastSeen = time.Now()
	activation.CreatedAt = activation.LastSeen
	stored := *activation
	f.activations[activation.ID] = &stored
	return nil
}

func (f *fakeStore) TouchActivation(_ context.Context, id string, ip *string, userID *string) error {
	a, ok := f.activations[id]
	if !ok {
		return fmt.Errorf("activation not found: %s", id)
	}
	a.LastSeen = time.Now()
	if ip != nil {
		a.IP = ip
	}
	if userID != nil {
		a.UserID = userID
	}
	return nil
}

func (f *fakeStore) RefreshActivationLastSeen(_ context.Context, id string) (time.Time, error) {
	a, ok := f.activations[id]
	if !ok {
		return time.Time{}, fmt.Errorf("activation not found: %s", id)
	}
	a.LastSeen = time.Now()
	return a.LastSeen, nil
}

func (f *fakeStore) RevokeActivation(_ context.Context, id string) error {
	a, ok := f.activations[id]
	if !ok || a.Revoked {
		return fmt.Errorf("activation not found: %s", id)
	}
	a.Revoked = true
	return nil
}

func (f *fakeStore) ListActivations(_ context.Context, licenseID string) ([]database.Activation, error) {
	var out []database.Activation
	for _, a := range f.activations {
		if a.LicenseID == licenseID {
			out = append(out, *a)
		}
	}
	return out, nil
}

func issueLicense(t *testing.T, svc *Service, maxActivations int, expiresAt *time.Time) *database.License {
	t.Helper()
	lic, err := svc.Create(context.Background(), CreateRequest{
		MaxActivations: maxActivations,
		ExpiresAt:      expiresAt,
	}, "admin-1")
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	return lic
}

func TestCreateRejectsZeroActivations(t *testing.T) {
	svc := NewService(newFakeStore())

	_, err := svc.Create(context.Background(), CreateRequest{MaxActivations: 0}, "")
	var licErr LicenseError
	if !errors.As(err, &licErr) || licErr.Code != ErrInvalidInput.Code {
		t.Fatalf("Create() error = %v, want code %s", err, ErrInvalidInput.Code)
	}
}

func TestActivateEnforcesLimit(t *testing.T) {
	svc := NewService(newFakeStore())
	lic := issueLicense(t, svc, 2, nil)

	for _, machine := range []string{"machine-1", "machine-2"} {
		_, err := svc.Activate(context.Background(), ActivateRequest{
			LicenseKey: lic.LicenseKey,
			MachineID:  machine,
		}, "10.0.0.1", "")
		if err != nil {
			t.Fatalf("Activate(%s) error = %v", machine, err)
		}
	}

	_, err := svc.Activate(context.Background(), ActivateRequest{
		LicenseKey: lic.LicenseKey,
		MachineID:  "machine-3",
	}, "10.0.0.1", "")
	if !errors.Is(err, ErrActivationLimit) {
		t.Fatalf("Activate() over limit error = %v, want %v", err, ErrActivationLimit)
	}
}

func TestActivateSameMachineIsIdempotent(t *testing.T) {
	svc := NewService(newFakeStore())
	lic := issueLicense(t, svc, 1, nil)

	first, err := svc.Activate(context.Background(), ActivateRequest{
		LicenseKey: lic.LicenseKey,
		MachineID:  "machine-1",
	}, "10.0.0.1", "")
	if err != nil {
		t.Fatalf("Activate() error = %v", err)
	}
	if first.Existing {
		t.Fatal("first Activate() reported an existing activation")
	}

	// The limit is already reached, but the same machine must still get
	// its existing slot back
	second, err := svc.Activate(context.Background(), ActivateRequest{
		LicenseKey: lic.LicenseKey,
		MachineID:  "machine-1",
	}, "10.0.0.2", "")
	if err != nil {
		t.Fatalf("repeat Activate() error = %v", err)
	}
	if !second.Existing {
		t.Error("repeat Activate() did not report an existing activation")
	}
	if second.ActivationID != first.ActivationID {
		t.Errorf("repeat Activate() id = %s, want %s", second.ActivationID, first.ActivationID)
	}
}

func TestActivateExpiredLicense(t *testing.T) {
	svc := NewService(newFakeStore())
	expired := time.Now().Add(-time.Hour)
	lic := issueLicense(t, svc, 5, &expired)

	_, err := svc.Activate(context.Background(), ActivateRequest{
		LicenseKey: lic.LicenseKey,
		MachineID:  "machine-1",
	}, "", "")
	if !errors.Is(err, ErrLicenseExpired) {
		t.Fatalf("Activate() error = %v, want %v", err, ErrLicenseExpired)
	}
}

func TestValidateUnknownKey(t *testing.T) {
	svc := NewService(newFakeStore())

	_, err := svc.Validate(context.Background(), ValidateRequest{
		LicenseKey: "A1B2-C3D4-E5F6-0789",
		MachineID:  "machine-1",
	})
	if !errors.Is(err, ErrLicenseNotFound) {
		t.Fatalf("Validate() error = %v, want %v", err, ErrLicenseNotFound)
	}
}

func TestValidateAfterActivationRevoked(t *testing.T) {
	svc := NewService(newFakeStore())
	lic := issueLicense(t, svc, 1, nil)

	result, err := svc.Activate(context.Background(), ActivateRequest{
		LicenseKey: lic.LicenseKey,
		MachineID:  "machine-1",
	}, "", "")
	if err != nil {
		t.Fatalf("Activate() error = %v", err)
	}

	if _, err := svc.Validate(context.Background(), ValidateRequest{
		LicenseKey: lic.LicenseKey,
		MachineID:  "machine-1",
	}); err != nil {
		t.Fatalf("Validate() before revoke error = %v", err)
	}

	if err := svc.RevokeActivation(context.Background(), result.ActivationID); err != nil {
		t.Fatalf("RevokeActivation() error = %v", err)
	}

	_, err = svc.Validate(context.Background(), ValidateRequest{
		LicenseKey: lic.LicenseKey,
		MachineID:  "machine-1",
	})
	if !errors.Is(err, ErrNotActivated) {
		t.Fatalf("Validate() after revoke error = %v, want %v", err, ErrNotActivated)
	}
}

func TestValidateAfterLicenseRevoked(t *testing.T) {
	svc := NewService(newFakeStore())
	lic := issueLicense(t, svc, 1, nil)

	if _, err := svc.Activate(context.Background(), ActivateRequest{
		LicenseKey: lic.LicenseKey,
		MachineID:  "machine-1",
	}, "", ""); err != nil {
		t.Fatalf("Activate() error = %v", err)
	}

	if err := svc.Revoke(context.Background(), lic.ID); err != nil {
		t.Fatalf("Revoke() error = %v", err)
	}

	// A revoked key answers exactly like one that never existed
	_, err := svc.Validate(context.Background(), ValidateRequest{
		LicenseKey: lic.LicenseKey,
		MachineID:  "machine-1",
	})
	if !errors.Is(err, ErrLicenseNotFound) {
		t.Fatalf("Validate() after license revoke error = %v, want %v", err, ErrLicenseNotFound)
	}
}

func TestRevokedSlotFreesCapacity(t *testing.T) {
	svc := NewService(newFakeStore())
	lic := issueLicense(t, svc, 1, nil)

	result, err := svc.Activate(context.Background(), ActivateRequest{
		LicenseKey: lic.LicenseKey,
		MachineID:  "machine-1",
	}, "", "")
	if err != nil {
		t.Fatalf("Activate() error = %v", err)
	}

	if err := svc.RevokeActivation(context.Background(), result.ActivationID); err != nil {
		t.Fatalf("RevokeActivation() error = %v", err)
	}

	if _, err := svc.Activate(context.Background(), ActivateRequest{
		LicenseKey: lic.LicenseKey,
		MachineID:  "machine-2",
	}, "", ""); err != nil {
		t.Fatalf("Activate() after freeing slot error = %v", err)
	}
}
