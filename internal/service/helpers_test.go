package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/jinhyuck8504/obdoc-sub000/internal/alert"
	"github.com/jinhyuck8504/obdoc-sub000/internal/anomaly"
	"github.com/jinhyuck8504/obdoc-sub000/internal/config"
	"github.com/jinhyuck8504/obdoc-sub000/internal/domain"
	"github.com/jinhyuck8504/obdoc-sub000/internal/ratelimit"
	"github.com/jinhyuck8504/obdoc-sub000/internal/repository"
	"github.com/jinhyuck8504/obdoc-sub000/internal/secure"
	"github.com/jinhyuck8504/obdoc-sub000/internal/store"
)

func intPtr(v int) *int { return &v }

// captureSink records raised alerts for assertions.
type captureSink struct {
	mu     sync.Mutex
	alerts []alert.Alert
}

func (s *captureSink) Raise(_ context.Context, a alert.Alert) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.alerts = append(s.alerts, a)
	return nil
}

func (s *captureSink) All() []alert.Alert {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]alert.Alert, len(s.alerts))
	copy(out, s.alerts)
	return out
}

// memKV is an in-process store.KV for cache tests.
type memKV struct {
	mu   sync.Mutex
	data map[string]string
}

func newMemKV() *memKV { return &memKV{data: map[string]string{}} }

func (k *memKV) Get(_ context.Context, key string) (string, error) {
	k.mu.Lock()
	defer k.mu.Unlock()
	v, ok := k.data[key]
	if !ok {
		return "", store.ErrMiss
	}
	return v, nil
}

func (k *memKV) Set(_ context.Context, key, value string, _ time.Duration) error {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.data[key] = value
	return nil
}

func (k *memKV) Del(_ context.Context, key string) error {
	k.mu.Lock()
	defer k.mu.Unlock()
	delete(k.data, key)
	return nil
}

func (k *memKV) Len() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return len(k.data)
}

type testEnv struct {
	clinics     *repository.MemoryClinicsRepo
	codes       *repository.MemoryInviteCodesRepo
	audit       *repository.MemoryAuditRepo
	limiter     *ratelimit.MemoryLimiter
	hasher      *secure.Hasher
	sink        *captureSink
	cache       *memKV
	validate    ValidationService
	invites     InviteCodeService
	clinicCodes ClinicCodeService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	env := &testEnv{
		clinics: repository.NewMemoryClinicsRepo(),
		codes:   repository.NewMemoryInviteCodesRepo(),
		audit:   repository.NewMemoryAuditRepo(),
		limiter: ratelimit.NewMemoryLimiter(),
		hasher:  secure.NewHasher("test-hash-key"),
		sink:    &captureSink{},
		cache:   newMemKV(),
	}
	logger := zap.NewNop()
	detector := anomaly.NewDetector(anomaly.DefaultThresholds())

	env.validate = NewValidationService(
		env.clinics, env.codes, env.audit,
		env.limiter, config.WindowLimit{Max: 3, Window: time.Minute},
		env.hasher, detector, env.sink,
		env.cache, 5*time.Minute,
		logger,
	)
	env.invites = NewInviteCodeService(
		env.clinics, env.codes, env.audit,
		env.limiter, config.WindowLimit{Max: 5, Window: time.Hour},
		env.hasher, logger,
	)
	env.clinicCodes = NewClinicCodeService(
		env.clinics, env.audit,
		env.limiter, config.WindowLimit{Max: 3, Window: time.Hour},
		nil, logger,
	)
	return env
}

// seedClinic registers an active clinic owned by ownerID and returns its code.
func (env *testEnv) seedClinic(t *testing.T, ownerID string) string {
	t.Helper()
	code := "OB-SEOUL-CLINIC-001"
	_, err := env.clinics.Create(context.Background(), &domain.Clinic{
		Code:      code,
		Name:      "Seoul Obesity Clinic",
		Type:      domain.ClinicTypeClinic,
		Region:    domain.RegionSeoul,
		Active:    true,
		CreatedBy: ownerID,
	})
	require.NoError(t, err)
	return code
}

// seedInviteCode persists a code for clinicCode and returns its plaintext.
func (env *testEnv) seedInviteCode(t *testing.T, clinicCode, ownerID string, maxUses *int, expiresAt *time.Time) string {
	t.Helper()
	plain := clinicCode + "-202608-7K2M9QX4"
	_, err := env.codes.Create(context.Background(), &domain.InviteCode{
		CodeHash:   env.hasher.Hash(plain),
		ClinicCode: clinicCode,
		MaxUses:    maxUses,
		Active:     true,
		ExpiresAt:  expiresAt,
		CreatedBy:  ownerID,
	})
	require.NoError(t, err)
	return plain
}
