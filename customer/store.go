package customer

import (
	"context"
	"strings"
	"sync"
	"time"
	"unicode"

	"storefront-svc/models"
	"storefront-svc/store"
	"storefront-svc/syncqueue"

	"go.uber.org/zap"
)

const (
	KeyCustomerData = "customer_data"
	SyncKindUpsert  = "customer.upsert"
)

// Remote is the profile service the local record is mirrored to, keyed by cpf.
type Remote interface {
	// Fetch returns nil without error when no profile exists.
	Fetch(ctx context.Context, cpf string) (*models.CustomerData, error)
	Upsert(ctx context.Context, data models.CustomerData) error
}

// Store owns one customer's profile. Local writes always win immediately;
// the remote copy is updated through the sync queue.
type Store struct {
	mu     sync.Mutex
	kv     store.Store
	remote Remote
	queue  syncqueue.Queue
	logger *zap.Logger
	now    func() time.Time
	data   models.CustomerData
}

func NewStore(ctx context.Context, kv store.Store, remote Remote, queue syncqueue.Queue, logger *zap.Logger) *Store {
	s := &Store{
		kv:     kv,
		remote: remote,
		queue:  queue,
		logger: logger,
		now:    time.Now,
	}
	s.data, _ = store.LoadJSON[models.CustomerData](ctx, kv, KeyCustomerData, logger)
	return s
}

func (s *Store) Data() models.CustomerData {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.data
}

// HasCPF reports whether the profile carries both a cpf and a name, which PIX
// charges require.
func (s *Store) HasCPF() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.data.CPF != "" && strings.TrimSpace(s.data.Name) != ""
}

// Save merges patch into the profile and persists it locally.
func (s *Store) Save(ctx context.Context, patch models.CustomerPatch) models.CustomerData {
	s.mu.Lock()
	data := s.data
	apply(&data.Name, patch.Name)
	apply(&data.Email, patch.Email)
	apply(&data.Phone, patch.Phone)
	apply(&data.Address, patch.Address)
	if patch.CPF != nil {
		data.CPF = NormalizeCPF(*patch.CPF)
	}
	if data.CreatedAt.IsZero() {
		data.CreatedAt = s.now().UTC()
	}
	s.data = data
	s.persist(ctx)
	s.mu.Unlock()

	if data.CPF != "" {
		s.enqueueSync(ctx, data)
	}
	return data
}

// Refresh merges the remote profile into the local one, preferring remote
// fields. Failures are logged and leave the local record untouched.
func (s *Store) Refresh(ctx context.Context) models.CustomerData {
	s.mu.Lock()
	cpf := s.data.CPF
	s.mu.Unlock()
	if cpf == "" || s.remote == nil {
		return s.Data()
	}

	remote, err := s.remote.Fetch(ctx, cpf)
	if err != nil {
		s.logger.Warn("Failed to fetch remote customer profile", zap.String("cpf", maskCPF(cpf)), zap.Error(err))
		return s.Data()
	}
	if remote == nil {
		return s.Data()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.data.CPF != cpf {
		// Changed while the fetch was in flight; the newer local record wins.
		return s.data
	}
	s.data = merge(s.data, *remote)
	s.persist(ctx)
	return s.data
}

func (s *Store) persist(ctx context.Context) {
	if err := store.SaveJSON(ctx, s.kv, KeyCustomerData, s.data); err != nil {
		s.logger.Error("Failed to persist customer data", zap.Error(err))
	}
}

func (s *Store) enqueueSync(ctx context.Context, data models.CustomerData) {
	if s.queue == nil {
		return
	}
	task, err := syncqueue.NewTask(SyncKindUpsert, data.CPF, data)
	if err != nil {
		s.logger.Error("Failed to build customer sync task", zap.Error(err))
		return
	}
	if err := s.queue.Enqueue(ctx, task); err != nil {
		s.logger.Warn("Failed to enqueue customer sync",
			zap.String("cpf", maskCPF(data.CPF)),
			zap.Error(err),
		)
	}
}

func apply(field *string, v *string) {
	if v != nil {
		*field = strings.TrimSpace(*v)
	}
}

func merge(local, remote models.CustomerData) models.CustomerData {
	pick := func(r, l string) string {
		if r != "" {
			return r
		}
		return l
	}
	out := models.CustomerData{
		Name:      pick(remote.Name, local.Name),
		Email:     pick(remote.Email, local.Email),
		Phone:     pick(remote.Phone, local.Phone),
		CPF:       pick(NormalizeCPF(remote.CPF), local.CPF),
		Address:   pick(remote.Address, local.Address),
		CreatedAt: local.CreatedAt,
	}
	if !remote.CreatedAt.IsZero() {
		out.CreatedAt = remote.CreatedAt
	}
	return out
}

// NormalizeCPF strips punctuation so formatted and bare tax ids key the same records.
func NormalizeCPF(cpf string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsDigit(r) {
			return r
		}
		return -1
	}, cpf)
}

func maskCPF(cpf string) string {
	if len(cpf) < 4 {
		return "***"
	}
	return "***" + cpf[len(cpf)-2:]
}
