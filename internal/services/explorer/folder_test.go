package explorer

import (
	"context"
	"errors"
	"os"
	"strings"
	"testing"

	"github.com/docvault/go-docvault/internal/models"
	"github.com/docvault/go-docvault/internal/pkg/storage"
	"github.com/docvault/go-docvault/internal/pkg/xerr"
)

type folderEnv struct {
	svc        FolderService
	folderRepo *memFolderRepo
	fileRepo   *memFileRepo
	vault      *storage.LocalVault
}

func newFolderEnv(t *testing.T) *folderEnv {
	t.Helper()
	vault, err := storage.NewLocalVault(t.TempDir(), t.TempDir())
	if err != nil {
		t.Fatalf("NewLocalVault: %v", err)
	}
	folderRepo := newMemFolderRepo()
	fileRepo := newMemFileRepo()
	domain := NewDomainService(folderRepo, fileRepo)
	svc := NewFolderService(folderRepo, fileRepo, domain, vault, noopTxManager{})
	return &folderEnv{svc: svc, folderRepo: folderRepo, fileRepo: fileRepo, vault: vault}
}

func (e *folderEnv) mustCreate(t *testing.T, userID uint64, role, name string, parentID *uint64) *models.Folder {
	t.Helper()
	folder, err := e.svc.CreateFolder(context.Background(), userID, role, &models.CreateFolderRequest{
		Name:           name,
		ParentFolderID: parentID,
	})
	if err != nil {
		t.Fatalf("CreateFolder(%s): %v", name, err)
	}
	return folder
}

func (e *folderEnv) physicalExists(t *testing.T, rel string) bool {
	t.Helper()
	abs, err := e.vault.Resolve(rel)
	if err != nil {
		t.Fatalf("Resolve(%s): %v", rel, err)
	}
	_, statErr := os.Stat(abs)
	return statErr == nil
}

func TestCreateFolderMirrorsFilesystem(t *testing.T) {
	env := newFolderEnv(t)

	root := env.mustCreate(t, 1, models.RoleUser, "projects", nil)
	if root.Path != "projects" || root.Depth != 0 {
		t.Errorf("root path/depth = %q/%d", root.Path, root.Depth)
	}
	child := env.mustCreate(t, 1, models.RoleUser, "2026", &root.ID)
	if child.Path != "projects/2026" || child.Depth != 1 {
		t.Errorf("child path/depth = %q/%d", child.Path, child.Depth)
	}

	if !env.physicalExists(t, "projects/2026") {
		t.Error("physical directory missing after create")
	}
}

func TestCreateFolderRejectsDuplicatePath(t *testing.T) {
	env := newFolderEnv(t)
	env.mustCreate(t, 1, models.RoleUser, "docs", nil)

	_, err := env.svc.CreateFolder(context.Background(), 1, models.RoleUser, &models.CreateFolderRequest{Name: "docs"})
	if !errors.Is(err, xerr.ErrFolderAlreadyExists) {
		t.Errorf("err = %v, want ErrFolderAlreadyExists", err)
	}
}

func TestCreateFolderRejectsInvalidName(t *testing.T) {
	env := newFolderEnv(t)
	for _, name := range []string{"", "..", "a/b", ".hidden"} {
		_, err := env.svc.CreateFolder(context.Background(), 1, models.RoleUser, &models.CreateFolderRequest{Name: name})
		if !errors.Is(err, xerr.ErrFolderNameInvalid) {
			t.Errorf("CreateFolder(%q) err = %v, want ErrFolderNameInvalid", name, err)
		}
	}
}

func TestMoveFolderRewritesSubtreePaths(t *testing.T) {
	env := newFolderEnv(t)
	ctx := context.Background()

	// a/b/c 三层，外加目标 dst
	a := env.mustCreate(t, 1, models.RoleUser, "a", nil)
	b := env.mustCreate(t, 1, models.RoleUser, "b", &a.ID)
	c := env.mustCreate(t, 1, models.RoleUser, "c", &b.ID)
	dst := env.mustCreate(t, 1, models.RoleUser, "dst", nil)

	// c 里放一个文件记录，验证路径列跟随改写
	env.fileRepo.Create(nil, &models.File{
		FolderID:         c.ID,
		FileName:         "f.txt",
		OriginalFileName: "f.txt",
		Path:             "a/b/c/f.txt",
		IsCurrentVersion: true,
	})
	if _, err := env.vault.WriteFile("a/b/c/f.txt", strings.NewReader("x")); err != nil {
		t.Fatal(err)
	}

	// 把 b 移到 dst 下
	moved, err := env.svc.UpdateFolder(ctx, 1, models.RoleUser, b.ID, &models.UpdateFolderRequest{
		ParentFolderID: &dst.ID,
	})
	if err != nil {
		t.Fatalf("UpdateFolder: %v", err)
	}
	if moved.Path != "dst/b" || moved.Depth != 1 {
		t.Errorf("moved path/depth = %q/%d, want dst/b/1", moved.Path, moved.Depth)
	}

	gotC, err := env.folderRepo.FindByID(c.ID)
	if err != nil {
		t.Fatal(err)
	}
	if gotC.Path != "dst/b/c" || gotC.Depth != 2 {
		t.Errorf("descendant path/depth = %q/%d, want dst/b/c/2", gotC.Path, gotC.Depth)
	}

	files, _ := env.fileRepo.FindByFolder(c.ID, true)
	if len(files) != 1 || files[0].Path != "dst/b/c/f.txt" {
		t.Errorf("file path not rewritten: %+v", files)
	}

	if env.physicalExists(t, "a/b") {
		t.Error("old physical subtree still present")
	}
	if !env.physicalExists(t, "dst/b/c/f.txt") {
		t.Error("physical file missing at new location")
	}
}

func TestRenameFolderMultibyteNamesRewritesFilePaths(t *testing.T) {
	env := newFolderEnv(t)
	ctx := context.Background()

	// 中文目录名的字节长度和字符长度不同，前缀改写必须按字符截取
	docs := env.mustCreate(t, 1, models.RoleUser, "文档", nil)
	sub := env.mustCreate(t, 1, models.RoleUser, "合同", &docs.ID)
	env.fileRepo.Create(nil, &models.File{
		FolderID:         sub.ID,
		FileName:         "协议.pdf",
		OriginalFileName: "协议.pdf",
		Path:             "文档/合同/协议.pdf",
		IsCurrentVersion: true,
	})
	if _, err := env.vault.WriteFile("文档/合同/协议.pdf", strings.NewReader("x")); err != nil {
		t.Fatal(err)
	}

	newName := "归档"
	renamed, err := env.svc.UpdateFolder(ctx, 1, models.RoleUser, docs.ID, &models.UpdateFolderRequest{Name: &newName})
	if err != nil {
		t.Fatalf("UpdateFolder: %v", err)
	}
	if renamed.Path != "归档" {
		t.Errorf("renamed path = %q", renamed.Path)
	}

	gotSub, err := env.folderRepo.FindByID(sub.ID)
	if err != nil {
		t.Fatal(err)
	}
	if gotSub.Path != "归档/合同" {
		t.Errorf("descendant path = %q, want 归档/合同", gotSub.Path)
	}

	files, _ := env.fileRepo.FindByFolder(sub.ID, true)
	if len(files) != 1 || files[0].Path != "归档/合同/协议.pdf" {
		t.Errorf("file path not rewritten intact: %+v", files)
	}
	if !env.physicalExists(t, "归档/合同/协议.pdf") {
		t.Error("physical file missing at new location")
	}
}

func TestMoveFolderIntoOwnSubtreeRejected(t *testing.T) {
	env := newFolderEnv(t)
	ctx := context.Background()

	a := env.mustCreate(t, 1, models.RoleUser, "a", nil)
	b := env.mustCreate(t, 1, models.RoleUser, "b", &a.ID)

	_, err := env.svc.UpdateFolder(ctx, 1, models.RoleUser, a.ID, &models.UpdateFolderRequest{
		ParentFolderID: &b.ID,
	})
	if !errors.Is(err, xerr.ErrCannotMoveIntoSubtree) {
		t.Errorf("move into descendant err = %v, want ErrCannotMoveIntoSubtree", err)
	}

	_, err = env.svc.UpdateFolder(ctx, 1, models.RoleUser, a.ID, &models.UpdateFolderRequest{
		ParentFolderID: &a.ID,
	})
	if !errors.Is(err, xerr.ErrCannotMoveIntoSubtree) {
		t.Errorf("move into self err = %v, want ErrCannotMoveIntoSubtree", err)
	}
}

func TestRenameFolderKeepsParent(t *testing.T) {
	env := newFolderEnv(t)
	a := env.mustCreate(t, 1, models.RoleUser, "a", nil)
	b := env.mustCreate(t, 1, models.RoleUser, "old", &a.ID)

	newName := "new"
	renamed, err := env.svc.UpdateFolder(context.Background(), 1, models.RoleUser, b.ID, &models.UpdateFolderRequest{
		Name: &newName,
	})
	if err != nil {
		t.Fatalf("UpdateFolder: %v", err)
	}
	if renamed.Path != "a/new" || renamed.ParentFolderID == nil || *renamed.ParentFolderID != a.ID {
		t.Errorf("renamed = %+v", renamed)
	}
	if !env.physicalExists(t, "a/new") || env.physicalExists(t, "a/old") {
		t.Error("physical rename not applied")
	}
}

func TestDeleteFolderOrphansChildren(t *testing.T) {
	env := newFolderEnv(t)
	ctx := context.Background()

	parent := env.mustCreate(t, 1, models.RoleUser, "parent", nil)
	child := env.mustCreate(t, 1, models.RoleUser, "child", &parent.ID)
	env.fileRepo.Create(nil, &models.File{
		FolderID:         parent.ID,
		FileName:         "doc.pdf",
		OriginalFileName: "doc.pdf",
		Path:             "parent/doc.pdf",
		IsCurrentVersion: true,
	})

	if err := env.svc.DeleteFolder(ctx, 1, models.RoleUser, parent.ID); err != nil {
		t.Fatalf("DeleteFolder: %v", err)
	}

	// 父文件夹的元数据和文件记录都被删除
	if _, err := env.folderRepo.FindByID(parent.ID); !errors.Is(err, xerr.ErrFolderNotFound) {
		t.Errorf("parent still present: %v", err)
	}
	files, _ := env.fileRepo.FindByFolder(parent.ID, false)
	if len(files) != 0 {
		t.Errorf("files not deleted: %+v", files)
	}

	// 直接子文件夹成为孤儿，保留原 path/depth
	orphan, err := env.folderRepo.FindByID(child.ID)
	if err != nil {
		t.Fatalf("orphan lookup: %v", err)
	}
	if orphan.ParentFolderID != nil {
		t.Error("orphan still has a parent")
	}
	if orphan.Path != "parent/child" || orphan.Depth != 1 {
		t.Errorf("orphan path/depth rewritten: %q/%d", orphan.Path, orphan.Depth)
	}

	if env.physicalExists(t, "parent") {
		t.Error("physical subtree still present after delete")
	}
}

func TestSystemFolderRefusesStructuralOps(t *testing.T) {
	env := newFolderEnv(t)
	ctx := context.Background()

	sys := &models.Folder{Name: "shared", Path: "shared", IsSystemFolder: true, CreatedBy: 99}
	if err := env.folderRepo.Create(nil, sys); err != nil {
		t.Fatal(err)
	}
	env.vault.CreateDirectory("shared")

	newName := "renamed"
	if _, err := env.svc.UpdateFolder(ctx, 1, models.RoleAdmin, sys.ID, &models.UpdateFolderRequest{Name: &newName}); !errors.Is(err, xerr.ErrSystemFolder) {
		t.Errorf("rename err = %v, want ErrSystemFolder", err)
	}
	if err := env.svc.DeleteFolder(ctx, 1, models.RoleAdmin, sys.ID); !errors.Is(err, xerr.ErrSystemFolder) {
		t.Errorf("delete err = %v, want ErrSystemFolder", err)
	}
}

func TestFolderAccessControl(t *testing.T) {
	env := newFolderEnv(t)
	ctx := context.Background()

	owner, stranger := uint64(1), uint64(2)
	folder := env.mustCreate(t, owner, models.RoleUser, "private", nil)

	// 无授权的用户不可见也不可写
	if _, err := env.svc.GetContents(ctx, stranger, models.RoleUser, folder.ID); !errors.Is(err, xerr.ErrAccessDenied) {
		t.Errorf("GetContents err = %v, want ErrAccessDenied", err)
	}

	// 创建者授予读权限后可读，仍不可作为父级创建子文件夹
	if err := env.svc.GrantAccess(ctx, owner, models.RoleUser, folder.ID, &models.GrantAccessRequest{
		UserID:     stranger,
		Permission: models.PermissionRead,
	}); err != nil {
		t.Fatalf("GrantAccess: %v", err)
	}
	if _, err := env.svc.GetContents(ctx, stranger, models.RoleUser, folder.ID); err != nil {
		t.Errorf("GetContents after grant: %v", err)
	}
	_, err := env.svc.CreateFolder(ctx, stranger, models.RoleUser, &models.CreateFolderRequest{
		Name:           "sub",
		ParentFolderID: &folder.ID,
	})
	if !errors.Is(err, xerr.ErrWriteDenied) {
		t.Errorf("create with read-only grant err = %v, want ErrWriteDenied", err)
	}

	// 撤销后恢复不可见
	if err := env.svc.RevokeAccess(ctx, owner, models.RoleUser, folder.ID, stranger); err != nil {
		t.Fatalf("RevokeAccess: %v", err)
	}
	if _, err := env.svc.GetContents(ctx, stranger, models.RoleUser, folder.ID); !errors.Is(err, xerr.ErrAccessDenied) {
		t.Errorf("GetContents after revoke err = %v, want ErrAccessDenied", err)
	}
}

func TestMoveToRoot(t *testing.T) {
	env := newFolderEnv(t)
	a := env.mustCreate(t, 1, models.RoleUser, "a", nil)
	b := env.mustCreate(t, 1, models.RoleUser, "b", &a.ID)

	moved, err := env.svc.UpdateFolder(context.Background(), 1, models.RoleUser, b.ID, &models.UpdateFolderRequest{
		MoveToRoot: true,
	})
	if err != nil {
		t.Fatalf("UpdateFolder: %v", err)
	}
	if moved.ParentFolderID != nil || moved.Path != "b" || moved.Depth != 0 {
		t.Errorf("moved = %+v", moved)
	}
	if !env.physicalExists(t, "b") {
		t.Error("physical directory not at root")
	}
}
