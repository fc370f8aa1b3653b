package models

import (
	"time"
)

// 审批状态：每个文件版本都要经过审批后才对普通用户可见
const (
	ApprovalPending     = "pending"
	ApprovalApproved    = "approved"
	ApprovalDisapproved = "disapproved"

	// ApprovalFilterAll 列表查询专用的过滤值，不会写入任何记录
	ApprovalFilterAll = "all"
)

// File 对应 files 表，每个版本一条记录
// 同一文件夹内共享 OriginalFileName 的所有记录构成一条版本链（lineage），
// 通过 OriginalFileID/PreviousVersions 关联，任意时刻恰好有一条 IsCurrentVersion=true
type File struct {
	ID               uint64   `gorm:"primaryKey;autoIncrement" json:"id"`
	UUID             string   `gorm:"type:varchar(36);unique;not null" json:"uuid"`
	FolderID         uint64   `gorm:"not null;index:idx_folder_filename" json:"folder_id"`
	FileName         string   `gorm:"type:varchar(255);not null;index:idx_folder_filename" json:"filename"` // 实际落盘名，带版本后缀
	OriginalFileName string   `gorm:"type:varchar(255);not null;index" json:"original_filename"`            // 用户上传名，版本链的标识
	Path             string   `gorm:"type:varchar(1024);not null" json:"path"`                              // folder.Path + "/" + FileName
	Size             uint64   `gorm:"type:bigint unsigned;not null;default:0" json:"size"`
	MimeType         string   `gorm:"type:varchar(128);not null" json:"mime_type"`
	Extension        string   `gorm:"type:varchar(32);not null;default:''" json:"extension"`
	Description      string   `gorm:"type:varchar(1024);not null;default:''" json:"description"`
	Tags             []string `gorm:"serializer:json" json:"tags"`
	OwnerID          uint64   `gorm:"not null;index" json:"owner_id"`
	UploadedBy       uint64   `gorm:"not null;index" json:"uploaded_by"`

	// 版本链字段
	Version          uint     `gorm:"not null;default:1" json:"version"`
	IsCurrentVersion bool     `gorm:"not null;default:true" json:"is_current_version"`
	PreviousVersions []uint64 `gorm:"serializer:json" json:"previous_versions"`         // 按版本顺序排列的历史版本 ID
	OriginalFileID   *uint64  `gorm:"index;default:null" json:"original_file_id"`       // 指向版本 1 记录，版本 1 自身为 null
	FileHash         string   `gorm:"type:varchar(64);not null;index" json:"file_hash"` // SHA-256 十六进制

	// 审批字段，由 Approve/Disapprove 方法维护互斥
	ApprovalStatus    string     `gorm:"type:varchar(16);not null;default:'pending';index" json:"approval_status"`
	ApprovedBy        *uint64    `gorm:"default:null" json:"approved_by,omitempty"`
	ApprovedAt        *time.Time `gorm:"default:null" json:"approved_at,omitempty"`
	RejectedBy        *uint64    `gorm:"default:null" json:"rejected_by,omitempty"`
	RejectedAt        *time.Time `gorm:"default:null" json:"rejected_at,omitempty"`
	DisapprovalReason string     `gorm:"type:varchar(512);not null;default:''" json:"disapproval_reason,omitempty"`

	IsDeleted     bool   `gorm:"not null;default:false;index" json:"is_deleted"`
	DownloadCount uint64 `gorm:"not null;default:0" json:"download_count"`

	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`

	Folder *Folder `gorm:"foreignKey:FolderID" json:"-"`
}

// TableName 指定 GORM 使用的表名
func (File) TableName() string {
	return "files"
}

// LineageOriginID 返回版本链起点（版本 1 记录）的 ID
func (f *File) LineageOriginID() uint64 {
	if f.OriginalFileID != nil {
		return *f.OriginalFileID
	}
	return f.ID
}

// Approve 将审批状态置为 approved，并清空驳回分支的所有字段
// pending 和 disapproved 都允许转入 approved（支持复审）
func (f *File) Approve(by uint64) {
	now := time.Now()
	f.ApprovalStatus = ApprovalApproved
	f.ApprovedBy = &by
	f.ApprovedAt = &now
	f.RejectedBy = nil
	f.RejectedAt = nil
	f.DisapprovalReason = ""
}

// Disapprove 将审批状态置为 disapproved，并清空通过分支的所有字段
// reason 不能为空，由调用方先行校验
func (f *File) Disapprove(by uint64, reason string) {
	now := time.Now()
	f.ApprovalStatus = ApprovalDisapproved
	f.RejectedBy = &by
	f.RejectedAt = &now
	f.DisapprovalReason = reason
	f.ApprovedBy = nil
	f.ApprovedAt = nil
}

// VisibleTo 判断该文件对给定用户是否可见
// 审批通过的文件对所有具备文件夹访问权的用户可见；
// pending/disapproved 只对上传者本人和具备复审权限的角色可见
func (f *File) VisibleTo(userID uint64, role string) bool {
	if f.ApprovalStatus == ApprovalApproved {
		return true
	}
	if f.UploadedBy == userID {
		return true
	}
	return role == RoleAdmin || role == RoleSubAdmin
}
