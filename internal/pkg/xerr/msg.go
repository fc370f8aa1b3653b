package xerr

import "errors"

var (
	// 通用错误
	ErrSuccess        = errors.New("操作成功")
	ErrInternalServer = errors.New("服务器内部错误")

	// 客户端请求错误
	ErrInvalidParams      = errors.New("无效的请求参数")
	ErrValidationFailed   = errors.New("参数验证失败")
	ErrFolderNameInvalid  = errors.New("文件夹名包含非法字符")
	ErrFileNameInvalid    = errors.New("文件名包含非法字符")
	ErrMimeTypeNotAllowed = errors.New("文件类型不在允许列表内")
	ErrReasonRequired     = errors.New("驳回操作必须提供原因")
	ErrPathViolation      = errors.New("路径越出存储根目录")

	// 认证与授权错误
	ErrUnauthorized       = errors.New("用户未授权")
	ErrTokenInvalid       = errors.New("认证 Token 无效或已过期")
	ErrInvalidCredentials = errors.New("用户名或密码不正确")
	ErrUserAlreadyExists  = errors.New("该用户名已被注册")
	ErrEmailAlreadyExists = errors.New("邮箱已被注册")

	// 权限错误
	ErrForbidden      = errors.New("禁止访问")
	ErrAccessDenied   = errors.New("您没有访问此资源的权限")
	ErrWriteDenied    = errors.New("您没有写入此文件夹的权限")
	ErrSystemFolder   = errors.New("系统文件夹不允许执行该操作")
	ErrReviewRequired = errors.New("该操作需要审批权限")
	ErrNotVisible     = errors.New("文件尚未通过审批")

	// 资源未找到错误
	ErrUserNotFound    = errors.New("用户不存在")
	ErrFileNotFound    = errors.New("文件不存在")
	ErrFolderNotFound  = errors.New("文件夹不存在")
	ErrVersionNotFound = errors.New("文件版本不存在")

	// 业务逻辑冲突
	ErrFolderAlreadyExists   = errors.New("目标路径已存在同名文件夹")
	ErrFileAlreadyExists     = errors.New("文件或物理对象已存在")
	ErrCannotMoveIntoSubtree = errors.New("不能移动文件夹到其子树下")
	ErrDuplicateContent      = errors.New("文件夹内已存在相同内容的文件")
	ErrNameConflict          = errors.New("命名冲突无法解决")

	// 数据库与外部服务错误
	ErrDatabaseError = errors.New("数据库操作失败")
	ErrStorageError  = errors.New("存储操作失败")
	ErrSearchError   = errors.New("搜索服务操作失败")
)

// CodeOf 返回 sentinel 错误对应的业务错误码，便于 handler 统一映射
func CodeOf(err error) int {
	switch {
	case errors.Is(err, ErrInvalidParams):
		return InvalidParamsCode
	case errors.Is(err, ErrValidationFailed):
		return ValidationFailedCode
	case errors.Is(err, ErrFolderNameInvalid):
		return FolderNameInvalidCode
	case errors.Is(err, ErrFileNameInvalid):
		return FileNameInvalidCode
	case errors.Is(err, ErrMimeTypeNotAllowed):
		return MimeTypeNotAllowedCode
	case errors.Is(err, ErrReasonRequired):
		return ReasonRequiredCode
	case errors.Is(err, ErrPathViolation):
		return PathViolationCode
	case errors.Is(err, ErrUnauthorized):
		return UnauthorizedCode
	case errors.Is(err, ErrTokenInvalid):
		return TokenInvalidCode
	case errors.Is(err, ErrInvalidCredentials):
		return InvalidCredentialsCode
	case errors.Is(err, ErrAccessDenied):
		return AccessDeniedCode
	case errors.Is(err, ErrWriteDenied):
		return WriteDeniedCode
	case errors.Is(err, ErrSystemFolder):
		return SystemFolderCode
	case errors.Is(err, ErrReviewRequired):
		return ReviewRequiredCode
	case errors.Is(err, ErrNotVisible):
		return NotVisibleCode
	case errors.Is(err, ErrUserNotFound):
		return UserNotFoundCode
	case errors.Is(err, ErrFileNotFound):
		return FileNotFoundCode
	case errors.Is(err, ErrFolderNotFound):
		return FolderNotFoundCode
	case errors.Is(err, ErrVersionNotFound):
		return VersionNotFoundCode
	case errors.Is(err, ErrUserAlreadyExists):
		return UserAlreadyExistsCode
	case errors.Is(err, ErrEmailAlreadyExists):
		return EmailAlreadyExistsCode
	case errors.Is(err, ErrFolderAlreadyExists):
		return FolderAlreadyExistsCode
	case errors.Is(err, ErrFileAlreadyExists):
		return FileAlreadyExistsCode
	case errors.Is(err, ErrCannotMoveIntoSubtree):
		return CannotMoveIntoSubtreeCode
	case errors.Is(err, ErrDuplicateContent):
		return DuplicateContentCode
	case errors.Is(err, ErrNameConflict):
		return NameConflictCode
	case errors.Is(err, ErrDatabaseError):
		return DatabaseErrorCode
	case errors.Is(err, ErrStorageError):
		return StorageErrorCode
	case errors.Is(err, ErrSearchError):
		return SearchErrorCode
	default:
		return InternalServerErrorCode
	}
}

// HTTPStatusOf 根据业务错误码推导 HTTP 状态码（取前三位）
func HTTPStatusOf(code int) int {
	status := code / 100
	if status < 100 || status > 599 {
		return 500
	}
	return status
}
