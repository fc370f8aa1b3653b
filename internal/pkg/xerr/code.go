package xerr

// 定义了统一的业务错误码
const (
	SuccessCode = 20000 // 通用成功码

	// --- 客户端请求错误系列 (400xx) ---
	InvalidParamsCode      = 40000 // 无效的请求参数
	ValidationFailedCode   = 40001 // 参数验证失败
	FolderNameInvalidCode  = 40002 // 文件夹名包含非法字符
	FileNameInvalidCode    = 40003 // 文件名包含非法字符
	MimeTypeNotAllowedCode = 40004 // 文件类型不在允许列表内
	ReasonRequiredCode     = 40005 // 驳回操作缺少原因
	PathViolationCode      = 40006 // 路径越出存储根目录

	// --- 认证与授权错误系列 (401xx) ---
	UnauthorizedCode       = 40100 // 通用未授权
	TokenInvalidCode       = 40101 // Token 无效或过期
	InvalidCredentialsCode = 40102 // 用户名或密码错误

	// --- 权限错误系列 (403xx) ---
	ForbiddenCode        = 40300 // 通用无权限
	AccessDeniedCode     = 40301 // 没有访问该文件夹/文件的权限
	WriteDeniedCode      = 40302 // 没有写权限
	SystemFolderCode     = 40303 // 系统文件夹不允许该操作
	ReviewRequiredCode   = 40304 // 需要审批权限
	NotVisibleCode       = 40305 // 文件未通过审批，对当前用户不可见

	// --- 资源未找到错误系列 (404xx) ---
	NotFoundCode       = 40400 // 通用资源未找到
	UserNotFoundCode   = 40401 // 用户不存在
	FileNotFoundCode   = 40402 // 文件不存在
	FolderNotFoundCode = 40403 // 文件夹不存在
	VersionNotFoundCode = 40404 // 文件版本不存在

	// --- 业务逻辑冲突系列 (409xx) ---
	UserAlreadyExistsCode   = 40900 // 用户名已存在
	EmailAlreadyExistsCode  = 40901 // 邮箱已存在
	FolderAlreadyExistsCode = 40902 // 目标路径已存在同名文件夹
	FileAlreadyExistsCode   = 40903 // 文件或物理对象已存在
	CannotMoveIntoSubtreeCode = 40904 // 不能移动文件夹到其子树下
	DuplicateContentCode    = 40905 // 文件夹内已存在相同内容的文件
	NameConflictCode        = 40906 // 命名冲突且重试耗尽

	// --- 服务器内部错误系列 (500xx) ---
	InternalServerErrorCode = 50000 // 服务器内部通用错误
	DatabaseErrorCode       = 50001 // 数据库操作失败
	StorageErrorCode        = 50002 // 本地存储操作失败
	SearchErrorCode         = 50003 // 搜索服务操作失败
)
