package schedule

import (
	"context"
	"errors"
	"sync"
	"testing"

	"surveysync/internal/features/syncjob"

	"go.uber.org/zap"
)

type fakeRepo struct {
	mu     sync.Mutex
	scheds map[string]*ScheduledSync
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{scheds: map[string]*ScheduledSync{}}
}

func (f *fakeRepo) Create(ctx context.Context, sched *ScheduledSync) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if sched.ID == "" {
		sched.ID = "sched-1"
	}
	f.scheds[sched.ID] = sched
	return nil
}

func (f *fakeRepo) Get(ctx context.Context, id string) (*ScheduledSync, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	sched, ok := f.scheds[id]
	if !ok {
		return nil, errors.New("not found")
	}
	return sched, nil
}

func (f *fakeRepo) List(ctx context.Context) ([]ScheduledSync, error) { return nil, nil }

func (f *fakeRepo) ListEnabled(ctx context.Context) ([]ScheduledSync, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []ScheduledSync
	for _, sched := range f.scheds {
		if sched.Enabled {
			out = append(out, *sched)
		}
	}
	return out, nil
}

func (f *fakeRepo) Update(ctx context.Context, id string, updates map[string]interface{}) error {
	return nil
}

func (f *fakeRepo) Delete(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.scheds, id)
	return nil
}

func TestCreateValidatesCronExpression(t *testing.T) {
	service := NewScheduleService(newFakeRepo(), nil, zap.NewNop())

	tests := []struct {
		name    string
		expr    string
		wantErr bool
	}{
		{"Every Five Minutes", "*/5 * * * *", false},
		{"Daily", "@daily", false},
		{"Nonsense", "every tuesday", true},
		{"Empty", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := service.Create(context.Background(), &ScheduledSync{
				Name:     "nightly pull",
				Schedule: tt.expr,
				Config:   syncjob.SyncConfig{FormID: "hh_survey"},
			})
			if (err != nil) != tt.wantErr {
				t.Errorf("Create() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestCreateComputesNextRun(t *testing.T) {
	repo := newFakeRepo()
	service := NewScheduleService(repo, nil, zap.NewNop())

	sched := &ScheduledSync{Name: "hourly", Schedule: "0 * * * *"}
	if err := service.Create(context.Background(), sched); err != nil {
		t.Fatal(err)
	}
	if sched.NextRun == nil {
		t.Error("NextRun not computed on create")
	}
	if _, err := repo.Get(context.Background(), sched.ID); err != nil {
		t.Errorf("schedule not persisted: %v", err)
	}
}
