package service

import (
	"context"
	"errors"
	"slices"
	"testing"

	"github.com/hoangtu0812/pocketfile-lite/internal/domain/rbac"
)

func TestUserDelete_Guards(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()

	root := e.createUser(t, "root", rbac.RoleAdmin)
	rootP := e.principal(t, root)

	if err := e.users.Delete(ctx, rootP, root.ID); !errors.Is(err, ErrSelfDelete) {
		t.Errorf("удаление себя: ожидается ErrSelfDelete, получено %v", err)
	}

	// Единственного администратора не может удалить даже другой пользователь
	dev := e.createUser(t, "dev", rbac.RoleUser)
	if err := e.users.Delete(ctx, e.principal(t, dev), root.ID); !errors.Is(err, ErrLastAdmin) {
		t.Errorf("удаление последнего ADMIN: ожидается ErrLastAdmin, получено %v", err)
	}
	if _, err := e.db.userRepo().GetByID(ctx, root.ID); err != nil {
		t.Errorf("последний администратор должен остаться: %v", err)
	}

	second := e.createUser(t, "second", rbac.RoleAdmin)
	if err := e.users.Delete(ctx, e.principal(t, second), root.ID); err != nil {
		t.Errorf("удаление одного из двух ADMIN: %v", err)
	}

	if err := e.users.Delete(ctx, rootP, 999); !errors.Is(err, ErrNotFound) {
		t.Errorf("удаление несуществующего: ожидается ErrNotFound, получено %v", err)
	}
}

// TestUserDelete_KeepsArtifacts — файлы удалённого пользователя остаются.
func TestUserDelete_KeepsArtifacts(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()

	admin := e.admin(t)
	dev := e.createUser(t, "dev", rbac.RoleUser)
	project, version := e.projectWithVersion(t, "Demo", "1.0.0")
	devP := e.grant(t, dev, project.ID)

	a, err := e.artifacts.Upload(ctx, devP, version.ID, "app.apk", newPayload(5))
	if err != nil {
		t.Fatalf("Upload() ошибка: %v", err)
	}

	if err := e.users.Delete(ctx, admin, dev.ID); err != nil {
		t.Fatalf("Delete() ошибка: %v", err)
	}

	list, err := e.artifacts.List(ctx, admin, version.ID)
	if err != nil {
		t.Fatalf("List() ошибка: %v", err)
	}
	if len(list) != 1 || list[0].ID != a.ID {
		t.Fatalf("файл пропал после удаления пользователя: %+v", list)
	}
	if list[0].UploadedBy != nil || list[0].UploaderName != nil {
		t.Errorf("uploaded_by должен обнулиться, получено %v", list[0].UploadedBy)
	}
}

func TestChangePassword(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	dev := e.createUser(t, "dev", rbac.RoleUser)

	if err := e.users.ChangePassword(ctx, dev.ID, "short"); !errors.Is(err, ErrValidation) {
		t.Errorf("короткий пароль: ожидается ErrValidation, получено %v", err)
	}
	if err := e.users.ChangePassword(ctx, 999, "new-password"); !errors.Is(err, ErrNotFound) {
		t.Errorf("нет пользователя: ожидается ErrNotFound, получено %v", err)
	}
	if err := e.users.ChangePassword(ctx, dev.ID, "new-password"); err != nil {
		t.Fatalf("ChangePassword() ошибка: %v", err)
	}

	if _, err := e.auth.Login(ctx, "dev", "password123"); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("старый пароль должен перестать работать: %v", err)
	}
	if _, err := e.auth.Login(ctx, "dev", "new-password"); err != nil {
		t.Errorf("вход с новым паролем: %v", err)
	}
}

func TestSetGrants(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	dev := e.createUser(t, "dev", rbac.RoleUser)
	p1, _ := e.projectWithVersion(t, "One", "1")
	p2, _ := e.projectWithVersion(t, "Two", "1")

	got, err := e.users.SetGrants(ctx, dev.ID, []int64{p2.ID, 999, p1.ID, p2.ID})
	if err != nil {
		t.Fatalf("SetGrants() ошибка: %v", err)
	}
	want := []int64{p1.ID, p2.ID}
	if !slices.Equal(got, want) {
		t.Errorf("SetGrants() = %v, ожидается %v (неизвестные ID пропускаются)", got, want)
	}

	got, err = e.users.SetGrants(ctx, dev.ID, nil)
	if err != nil {
		t.Fatalf("SetGrants(nil) ошибка: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("после очистки грантов = %v", got)
	}

	if _, err := e.users.SetGrants(ctx, 999, []int64{p1.ID}); !errors.Is(err, ErrNotFound) {
		t.Errorf("нет пользователя: ожидается ErrNotFound, получено %v", err)
	}
	if _, err := e.users.Grants(ctx, 999); !errors.Is(err, ErrNotFound) {
		t.Errorf("Grants() нет пользователя: ожидается ErrNotFound, получено %v", err)
	}
}

func TestUserList(t *testing.T) {
	e := newTestEnv(t)
	e.createUser(t, "zed", rbac.RoleUser)
	e.createUser(t, "amy", rbac.RoleAdmin)

	users, err := e.users.List(context.Background())
	if err != nil {
		t.Fatalf("List() ошибка: %v", err)
	}
	if len(users) != 2 || users[0].Username != "amy" || users[1].Username != "zed" {
		t.Errorf("List() порядок/состав неверный: %+v", users)
	}
}
