package service

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/bigkaa/gofilevault/internal/domain/model"
	"github.com/bigkaa/gofilevault/internal/domain/scan"
	"github.com/bigkaa/gofilevault/internal/repository"
)

// --- In-memory репозитории для unit-тестов сервисного слоя ---

// fakeUserRepo — in-memory реализация repository.UserRepository.
type fakeUserRepo struct {
	mu     sync.Mutex
	users  map[int64]*model.User
	nextID int64
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{users: map[int64]*model.User{}}
}

func (r *fakeUserRepo) Create(_ context.Context, u *model.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, existing := range r.users {
		if existing.Email == u.Email {
			return repository.ErrConflict
		}
	}

	r.nextID++
	u.ID = r.nextID
	u.CreatedAt = time.Now().UTC()
	clone := *u
	r.users[u.ID] = &clone
	return nil
}

func (r *fakeUserRepo) GetByEmail(_ context.Context, email string) (*model.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, u := range r.users {
		if u.Email == email {
			clone := *u
			return &clone, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *fakeUserRepo) GetByID(_ context.Context, id int64) (*model.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.users[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	clone := *u
	return &clone, nil
}

// setRole меняет роль пользователя напрямую (имитация действий администратора).
func (r *fakeUserRepo) setRole(id int64, role string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if u, ok := r.users[id]; ok {
		u.Role = role
	}
}

// delete удаляет пользователя напрямую.
func (r *fakeUserRepo) delete(id int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.users, id)
}

// fakeFileRepo — in-memory реализация repository.FileRepository.
type fakeFileRepo struct {
	mu     sync.Mutex
	files  map[int64]*model.FileMeta
	nextID int64
	// createErr — если задана, Create возвращает эту ошибку
	createErr error
}

func newFakeFileRepo() *fakeFileRepo {
	return &fakeFileRepo{files: map[int64]*model.FileMeta{}}
}

func (r *fakeFileRepo) Create(_ context.Context, f *model.FileMeta) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.createErr != nil {
		return r.createErr
	}

	r.nextID++
	f.ID = r.nextID
	f.CreatedAt = time.Now().UTC()
	clone := *f
	r.files[f.ID] = &clone
	return nil
}

func (r *fakeFileRepo) GetByID(_ context.Context, id int64) (*model.FileMeta, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	f, ok := r.files[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	clone := *f
	return &clone, nil
}

func (r *fakeFileRepo) ListByOwner(_ context.Context, ownerID int64) ([]*model.FileMeta, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var result []*model.FileMeta
	for _, f := range r.files {
		if f.OwnerID == ownerID {
			clone := *f
			result = append(result, &clone)
		}
	}
	sortFilesDesc(result)
	return result, nil
}

func (r *fakeFileRepo) ListAll(_ context.Context) ([]*model.FileMeta, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var result []*model.FileMeta
	for _, f := range r.files {
		clone := *f
		result = append(result, &clone)
	}
	sortFilesDesc(result)
	return result, nil
}

func (r *fakeFileRepo) ListPending(_ context.Context) ([]*model.FileMeta, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var result []*model.FileMeta
	for _, f := range r.files {
		if f.ScanStatus == scan.StatusPending {
			clone := *f
			result = append(result, &clone)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

func (r *fakeFileRepo) UpdateScanStatus(_ context.Context, id int64, status scan.Status) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	f, ok := r.files[id]
	if !ok || f.ScanStatus != scan.StatusPending {
		return repository.ErrNotFound
	}
	f.ScanStatus = status
	return nil
}

// status возвращает текущий статус файла напрямую.
func (r *fakeFileRepo) status(id int64) scan.Status {
	r.mu.Lock()
	defer r.mu.Unlock()
	if f, ok := r.files[id]; ok {
		return f.ScanStatus
	}
	return ""
}

func sortFilesDesc(files []*model.FileMeta) {
	sort.Slice(files, func(i, j int) bool { return files[i].ID > files[j].ID })
}

// fakeScheduler — запись поставленных в очередь файлов без обработки.
type fakeScheduler struct {
	mu        sync.Mutex
	scheduled []int64
}

func (s *fakeScheduler) Schedule(fileID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.scheduled = append(s.scheduled, fileID)
}

func (s *fakeScheduler) ids() []int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]int64(nil), s.scheduled...)
}
