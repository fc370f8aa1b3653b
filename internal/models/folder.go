package models

import (
	"strings"
	"time"
)

// 文件夹访问权限级别
const (
	PermissionRead  = "read"
	PermissionWrite = "write"
	PermissionAdmin = "admin"
)

// Folder 对应 folders 表，表示层级目录树中的一个节点
// Path 是从根到自身所有祖先 Name 的 "/" 连接串（根文件夹 Path == Name），全局唯一
type Folder struct {
	ID             uint64  `gorm:"primaryKey;autoIncrement" json:"id"`
	UUID           string  `gorm:"type:varchar(36);unique;not null" json:"uuid"`
	Name           string  `gorm:"type:varchar(255);not null" json:"name"`
	Path           string  `gorm:"type:varchar(1024);uniqueIndex:idx_folder_path,length:768;not null" json:"path"`
	ParentFolderID *uint64 `gorm:"index;default:null" json:"parent_folder_id"` // 根文件夹为 null
	Depth          uint    `gorm:"not null;default:0" json:"depth"`            // 根文件夹为 0
	IsSystemFolder bool    `gorm:"not null;default:false" json:"is_system_folder"`
	CreatedBy      uint64  `gorm:"not null;index" json:"created_by"`

	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`

	// 关联，方便预加载
	ParentFolder *Folder        `gorm:"foreignKey:ParentFolderID" json:"-"`
	Access       []FolderAccess `gorm:"foreignKey:FolderID" json:"access,omitempty"`
}

// TableName 指定 GORM 使用的表名
func (Folder) TableName() string {
	return "folders"
}

// FullPath 返回文件夹在存储根下的逻辑路径
func (f *Folder) FullPath() string {
	return f.Path
}

// IsAncestorOf 判断当前文件夹是否为 other 的祖先（或同一文件夹）
// 用于移动操作的环检测：不能把文件夹移动到自己的子树下
func (f *Folder) IsAncestorOf(other *Folder) bool {
	if other == nil {
		return false
	}
	return other.Path == f.Path || strings.HasPrefix(other.Path, f.Path+"/")
}

// FolderAccess 对应 folder_accesses 表，文件夹级的访问授权条目
// (folder_id, user_id) 唯一，授权是幂等的 upsert
type FolderAccess struct {
	ID         uint64    `gorm:"primaryKey;autoIncrement" json:"id"`
	FolderID   uint64    `gorm:"not null;uniqueIndex:idx_folder_user" json:"folder_id"`
	UserID     uint64    `gorm:"not null;uniqueIndex:idx_folder_user" json:"user_id"`
	Permission string    `gorm:"type:varchar(16);not null;default:'read'" json:"permission"` // read/write/admin
	GrantedBy  uint64    `gorm:"not null" json:"granted_by"`
	GrantedAt  time.Time `gorm:"autoCreateTime" json:"granted_at"`
}

// TableName 指定 GORM 使用的表名
func (FolderAccess) TableName() string {
	return "folder_accesses"
}

// CanWrite 判断该授权条目是否允许写操作
func (a *FolderAccess) CanWrite() bool {
	return a.Permission == PermissionWrite || a.Permission == PermissionAdmin
}
