package models

// CreateFolderRequest 创建文件夹请求
type CreateFolderRequest struct {
	Name           string  `json:"name" binding:"required"`
	ParentFolderID *uint64 `json:"parent_folder_id"`
}

// UpdateFolderRequest 文件夹更新请求，重命名与移动共用
// 两个字段均可选，至少提供一个
type UpdateFolderRequest struct {
	Name           *string `json:"name"`
	ParentFolderID *uint64 `json:"parent_folder_id"`
	MoveToRoot     bool    `json:"move_to_root"` // 显式移动到根，区别于"不改变父级"
}

// GrantAccessRequest 文件夹授权请求
type GrantAccessRequest struct {
	UserID     uint64 `json:"user_id" binding:"required"`
	Permission string `json:"permission" binding:"required,oneof=read write admin"`
}

// RenameFileRequest 文件重命名请求
type RenameFileRequest struct {
	NewName string `json:"new_name" binding:"required"`
}

// SetApprovalRequest 设置审批状态请求
type SetApprovalRequest struct {
	Status string `json:"status" binding:"required,oneof=approved disapproved"`
	Reason string `json:"reason"` // disapproved 时必填
}

// UploadResult 单个文件的上传结果
// Duplicate 为 true 表示内容与文件夹内已有文件相同，返回的是已存在的记录
type UploadResult struct {
	File      *File  `json:"file,omitempty"`
	Duplicate bool   `json:"duplicate"`
	FileName  string `json:"filename"`
	Error     string `json:"error,omitempty"`
}

// FolderContents 文件夹详情，包含子文件夹和（对调用者可见的）文件
type FolderContents struct {
	Folder     *Folder  `json:"folder"`
	Subfolders []Folder `json:"subfolders"`
	Files      []File   `json:"files"`
}

// SearchHit 文件搜索结果条目
type SearchHit struct {
	FileID   uint64  `json:"file_id"`
	FileName string  `json:"filename"`
	Path     string  `json:"path"`
	Score    float64 `json:"score"`
}
