package schema

// Configuration is the backup policy read from the cback configuration file.
type Configuration struct {
	Reference  *ReferenceConfig  `yaml:"reference,omitempty" json:"reference,omitempty" mapstructure:"reference"`
	Extensions *ExtensionsConfig `yaml:"extensions,omitempty" json:"extensions,omitempty" mapstructure:"extensions"`
	Options    *OptionsConfig    `yaml:"options,omitempty" json:"options,omitempty" mapstructure:"options"`
	Peers      *PeersConfig      `yaml:"peers,omitempty" json:"peers,omitempty" mapstructure:"peers"`
	Collect    *CollectConfig    `yaml:"collect,omitempty" json:"collect,omitempty" mapstructure:"collect"`
	Stage      *StageConfig      `yaml:"stage,omitempty" json:"stage,omitempty" mapstructure:"stage"`
	Store      *StoreConfig      `yaml:"store,omitempty" json:"store,omitempty" mapstructure:"store"`
	Purge      *PurgeConfig      `yaml:"purge,omitempty" json:"purge,omitempty" mapstructure:"purge"`
	AmazonS3   *AmazonS3Config   `yaml:"amazons3,omitempty" json:"amazons3,omitempty" mapstructure:"amazons3"`
	Capacity   *CapacityConfig   `yaml:"capacity,omitempty" json:"capacity,omitempty" mapstructure:"capacity"`
	MySQL      *DatabaseConfig   `yaml:"mysql,omitempty" json:"mysql,omitempty" mapstructure:"mysql"`
	PostgreSQL *DatabaseConfig   `yaml:"postgresql,omitempty" json:"postgresql,omitempty" mapstructure:"postgresql"`
	SysInfo    *SysInfoConfig    `yaml:"sysinfo,omitempty" json:"sysinfo,omitempty" mapstructure:"sysinfo"`
	Subversion *SubversionConfig `yaml:"subversion,omitempty" json:"subversion,omitempty" mapstructure:"subversion"`
	Mbox       *MboxConfig       `yaml:"mbox,omitempty" json:"mbox,omitempty" mapstructure:"mbox"`
	Split      *SplitConfig      `yaml:"split,omitempty" json:"split,omitempty" mapstructure:"split"`
}

type ReferenceConfig struct {
	Author      string `yaml:"author,omitempty" json:"author,omitempty" mapstructure:"author"`
	Revision    string `yaml:"revision,omitempty" json:"revision,omitempty" mapstructure:"revision"`
	Description string `yaml:"description,omitempty" json:"description,omitempty" mapstructure:"description"`
	Generator   string `yaml:"generator,omitempty" json:"generator,omitempty" mapstructure:"generator"`
}

// ExtensionsConfig lists the extended actions and how to order them.
type ExtensionsConfig struct {
	OrderMode string           `yaml:"order_mode,omitempty" json:"order_mode,omitempty" mapstructure:"order_mode"`
	Actions   []ExtendedAction `yaml:"actions,omitempty" json:"actions,omitempty" mapstructure:"actions"`
}

// ExtendedAction names an extension function and where it runs in the pipeline.
// Index is used in index order mode, Depends in dependency order mode.
type ExtendedAction struct {
	Name     string              `yaml:"name" json:"name" mapstructure:"name"`
	Module   string              `yaml:"module" json:"module" mapstructure:"module"`
	Function string              `yaml:"function" json:"function" mapstructure:"function"`
	Index    *int                `yaml:"index,omitempty" json:"index,omitempty" mapstructure:"index"`
	Depends  *ActionDependencies `yaml:"depends,omitempty" json:"depends,omitempty" mapstructure:"depends"`
}

// ActionDependencies lists actions that must run after (RunBefore) or before
// (RunAfter) the owning extension.
type ActionDependencies struct {
	RunBefore []string `yaml:"run_before,omitempty" json:"run_before,omitempty" mapstructure:"run_before"`
	RunAfter  []string `yaml:"run_after,omitempty" json:"run_after,omitempty" mapstructure:"run_after"`
}

type OptionsConfig struct {
	StartingDay    string            `yaml:"starting_day" json:"starting_day" mapstructure:"starting_day"`
	WorkingDir     string            `yaml:"working_dir" json:"working_dir" mapstructure:"working_dir"`
	BackupUser     string            `yaml:"backup_user" json:"backup_user" mapstructure:"backup_user"`
	BackupGroup    string            `yaml:"backup_group" json:"backup_group" mapstructure:"backup_group"`
	RcpCommand     string            `yaml:"rcp_command" json:"rcp_command" mapstructure:"rcp_command"`
	RshCommand     string            `yaml:"rsh_command,omitempty" json:"rsh_command,omitempty" mapstructure:"rsh_command"`
	CbackCommand   string            `yaml:"cback_command,omitempty" json:"cback_command,omitempty" mapstructure:"cback_command"`
	ManagedActions []string          `yaml:"managed_actions,omitempty" json:"managed_actions,omitempty" mapstructure:"managed_actions"`
	Hooks          []ActionHook      `yaml:"hooks,omitempty" json:"hooks,omitempty" mapstructure:"hooks"`
	Overrides      []CommandOverride `yaml:"overrides,omitempty" json:"overrides,omitempty" mapstructure:"overrides"`
}

// Hook types.
const (
	HookTypePre  = "pre"
	HookTypePost = "post"
)

// ActionHook is a shell command run before or after a named action.
type ActionHook struct {
	Action  string `yaml:"action" json:"action" mapstructure:"action"`
	Type    string `yaml:"type" json:"type" mapstructure:"type"`
	Command string `yaml:"command" json:"command" mapstructure:"command"`
}

// CommandOverride replaces the path used for an external command.
type CommandOverride struct {
	Command string `yaml:"command" json:"command" mapstructure:"command"`
	AbsPath string `yaml:"abs_path" json:"abs_path" mapstructure:"abs_path"`
}

type PeersConfig struct {
	Local  []LocalPeer  `yaml:"local,omitempty" json:"local,omitempty" mapstructure:"local"`
	Remote []RemotePeer `yaml:"remote,omitempty" json:"remote,omitempty" mapstructure:"remote"`
}

// Failure modes for peers that are not ready to be staged.
const (
	FailureModeNone   = "none"
	FailureModeAll    = "all"
	FailureModeDaily  = "daily"
	FailureModeWeekly = "weekly"
)

type LocalPeer struct {
	Name          string `yaml:"name" json:"name" mapstructure:"name"`
	CollectDir    string `yaml:"collect_dir" json:"collect_dir" mapstructure:"collect_dir"`
	IgnoreFailure string `yaml:"ignore_failure,omitempty" json:"ignore_failure,omitempty" mapstructure:"ignore_failure"`
}

type RemotePeer struct {
	Name           string   `yaml:"name" json:"name" mapstructure:"name"`
	CollectDir     string   `yaml:"collect_dir" json:"collect_dir" mapstructure:"collect_dir"`
	RemoteUser     string   `yaml:"remote_user,omitempty" json:"remote_user,omitempty" mapstructure:"remote_user"`
	RcpCommand     string   `yaml:"rcp_command,omitempty" json:"rcp_command,omitempty" mapstructure:"rcp_command"`
	RshCommand     string   `yaml:"rsh_command,omitempty" json:"rsh_command,omitempty" mapstructure:"rsh_command"`
	CbackCommand   string   `yaml:"cback_command,omitempty" json:"cback_command,omitempty" mapstructure:"cback_command"`
	Managed        bool     `yaml:"managed,omitempty" json:"managed,omitempty" mapstructure:"managed"`
	ManagedActions []string `yaml:"managed_actions,omitempty" json:"managed_actions,omitempty" mapstructure:"managed_actions"`
	IgnoreFailure  string   `yaml:"ignore_failure,omitempty" json:"ignore_failure,omitempty" mapstructure:"ignore_failure"`
}

// Collect and archive modes.
const (
	CollectModeDaily  = "daily"
	CollectModeWeekly = "weekly"
	CollectModeIncr   = "incr"

	ArchiveModeTar    = "tar"
	ArchiveModeTarGz  = "targz"
	ArchiveModeTarBz2 = "tarbz2"
)

type CollectConfig struct {
	TargetDir       string        `yaml:"target_dir" json:"target_dir" mapstructure:"target_dir"`
	CollectMode     string        `yaml:"collect_mode,omitempty" json:"collect_mode,omitempty" mapstructure:"collect_mode"`
	ArchiveMode     string        `yaml:"archive_mode,omitempty" json:"archive_mode,omitempty" mapstructure:"archive_mode"`
	IgnoreFile      string        `yaml:"ignore_file,omitempty" json:"ignore_file,omitempty" mapstructure:"ignore_file"`
	ExcludePaths    []string      `yaml:"exclude_paths,omitempty" json:"exclude_paths,omitempty" mapstructure:"exclude_paths"`
	ExcludePatterns []string      `yaml:"exclude_patterns,omitempty" json:"exclude_patterns,omitempty" mapstructure:"exclude_patterns"`
	Files           []CollectFile `yaml:"files,omitempty" json:"files,omitempty" mapstructure:"files"`
	Dirs            []CollectDir  `yaml:"dirs,omitempty" json:"dirs,omitempty" mapstructure:"dirs"`
}

type CollectFile struct {
	AbsPath     string `yaml:"abs_path" json:"abs_path" mapstructure:"abs_path"`
	CollectMode string `yaml:"collect_mode,omitempty" json:"collect_mode,omitempty" mapstructure:"collect_mode"`
	ArchiveMode string `yaml:"archive_mode,omitempty" json:"archive_mode,omitempty" mapstructure:"archive_mode"`
}

// CollectDir is a directory tree to archive. Empty modes fall back to the
// collect section defaults.
type CollectDir struct {
	AbsPath         string   `yaml:"abs_path" json:"abs_path" mapstructure:"abs_path"`
	CollectMode     string   `yaml:"collect_mode,omitempty" json:"collect_mode,omitempty" mapstructure:"collect_mode"`
	ArchiveMode     string   `yaml:"archive_mode,omitempty" json:"archive_mode,omitempty" mapstructure:"archive_mode"`
	IgnoreFile      string   `yaml:"ignore_file,omitempty" json:"ignore_file,omitempty" mapstructure:"ignore_file"`
	ExcludePaths    []string `yaml:"exclude_paths,omitempty" json:"exclude_paths,omitempty" mapstructure:"exclude_paths"`
	RelativeExclude []string `yaml:"relative_exclude_paths,omitempty" json:"relative_exclude_paths,omitempty" mapstructure:"relative_exclude_paths"`
	ExcludePatterns []string `yaml:"exclude_patterns,omitempty" json:"exclude_patterns,omitempty" mapstructure:"exclude_patterns"`
	Dereference     bool     `yaml:"dereference,omitempty" json:"dereference,omitempty" mapstructure:"dereference"`
}

type StageConfig struct {
	TargetDir string       `yaml:"target_dir" json:"target_dir" mapstructure:"target_dir"`
	Local     []LocalPeer  `yaml:"local,omitempty" json:"local,omitempty" mapstructure:"local"`
	Remote    []RemotePeer `yaml:"remote,omitempty" json:"remote,omitempty" mapstructure:"remote"`
}

// Media types.
const (
	MediaTypeDirectory = "directory"
	MediaTypeISO       = "iso"
)

type StoreConfig struct {
	SourceDir  string      `yaml:"source_dir" json:"source_dir" mapstructure:"source_dir"`
	Media      MediaConfig `yaml:"media" json:"media" mapstructure:"media"`
	CheckMedia bool        `yaml:"check_media,omitempty" json:"check_media,omitempty" mapstructure:"check_media"`
	CheckData  bool        `yaml:"check_data,omitempty" json:"check_data,omitempty" mapstructure:"check_data"`
}

// MediaConfig describes where staged data is written. Capacity is in bytes;
// zero means unlimited.
type MediaConfig struct {
	Type         string `yaml:"type" json:"type" mapstructure:"type"`
	Target       string `yaml:"target" json:"target" mapstructure:"target"`
	Capacity     int64  `yaml:"capacity,omitempty" json:"capacity,omitempty" mapstructure:"capacity"`
	ImageCommand string `yaml:"image_command,omitempty" json:"image_command,omitempty" mapstructure:"image_command"`
}

type PurgeConfig struct {
	Dirs []PurgeDir `yaml:"dirs,omitempty" json:"dirs,omitempty" mapstructure:"dirs"`
}

type PurgeDir struct {
	AbsPath    string `yaml:"abs_path" json:"abs_path" mapstructure:"abs_path"`
	RetainDays int    `yaml:"retain_days" json:"retain_days" mapstructure:"retain_days"`
}

type AmazonS3Config struct {
	Bucket        string `yaml:"bucket" json:"bucket" mapstructure:"bucket"`
	Prefix        string `yaml:"prefix,omitempty" json:"prefix,omitempty" mapstructure:"prefix"`
	Region        string `yaml:"region,omitempty" json:"region,omitempty" mapstructure:"region"`
	FullSizeLimit int64  `yaml:"full_size_limit,omitempty" json:"full_size_limit,omitempty" mapstructure:"full_size_limit"`
	IncrSizeLimit int64  `yaml:"incr_size_limit,omitempty" json:"incr_size_limit,omitempty" mapstructure:"incr_size_limit"`
}

// CapacityConfig sets a threshold on the store media. Exactly one of
// MaxPercentage and MinBytes is expected.
type CapacityConfig struct {
	MaxPercentage float64 `yaml:"max_percentage,omitempty" json:"max_percentage,omitempty" mapstructure:"max_percentage"`
	MinBytes      int64   `yaml:"min_bytes,omitempty" json:"min_bytes,omitempty" mapstructure:"min_bytes"`
}

// Compression modes for database dumps and system information.
const (
	CompressNone = "none"
	CompressGzip = "gzip"
)

// DatabaseConfig configures the mysql and postgresql extensions.
type DatabaseConfig struct {
	User      string   `yaml:"user,omitempty" json:"user,omitempty" mapstructure:"user"`
	Password  string   `yaml:"password,omitempty" json:"password,omitempty" mapstructure:"password"`
	Compress  string   `yaml:"compress_mode,omitempty" json:"compress_mode,omitempty" mapstructure:"compress_mode"`
	All       bool     `yaml:"all,omitempty" json:"all,omitempty" mapstructure:"all"`
	Databases []string `yaml:"databases,omitempty" json:"databases,omitempty" mapstructure:"databases"`
}

type SysInfoConfig struct {
	Compress string `yaml:"compress_mode,omitempty" json:"compress_mode,omitempty" mapstructure:"compress_mode"`
}

// SubversionConfig lists repositories to dump. Item modes fall back to the
// section defaults.
type SubversionConfig struct {
	CollectMode    string                    `yaml:"collect_mode,omitempty" json:"collect_mode,omitempty" mapstructure:"collect_mode"`
	Compress       string                    `yaml:"compress_mode,omitempty" json:"compress_mode,omitempty" mapstructure:"compress_mode"`
	Repositories   []SubversionRepository    `yaml:"repositories,omitempty" json:"repositories,omitempty" mapstructure:"repositories"`
	RepositoryDirs []SubversionRepositoryDir `yaml:"repository_dirs,omitempty" json:"repository_dirs,omitempty" mapstructure:"repository_dirs"`
}

type SubversionRepository struct {
	AbsPath     string `yaml:"abs_path" json:"abs_path" mapstructure:"abs_path"`
	CollectMode string `yaml:"collect_mode,omitempty" json:"collect_mode,omitempty" mapstructure:"collect_mode"`
	Compress    string `yaml:"compress_mode,omitempty" json:"compress_mode,omitempty" mapstructure:"compress_mode"`
}

// SubversionRepositoryDir is a directory whose child directories are each a
// repository.
type SubversionRepositoryDir struct {
	AbsPath         string   `yaml:"abs_path" json:"abs_path" mapstructure:"abs_path"`
	CollectMode     string   `yaml:"collect_mode,omitempty" json:"collect_mode,omitempty" mapstructure:"collect_mode"`
	Compress        string   `yaml:"compress_mode,omitempty" json:"compress_mode,omitempty" mapstructure:"compress_mode"`
	RelativeExclude []string `yaml:"relative_exclude_paths,omitempty" json:"relative_exclude_paths,omitempty" mapstructure:"relative_exclude_paths"`
	ExcludePatterns []string `yaml:"exclude_patterns,omitempty" json:"exclude_patterns,omitempty" mapstructure:"exclude_patterns"`
}

type MboxConfig struct {
	CollectMode string     `yaml:"collect_mode,omitempty" json:"collect_mode,omitempty" mapstructure:"collect_mode"`
	Compress    string     `yaml:"compress_mode,omitempty" json:"compress_mode,omitempty" mapstructure:"compress_mode"`
	Files       []MboxFile `yaml:"files,omitempty" json:"files,omitempty" mapstructure:"files"`
	Dirs        []MboxDir  `yaml:"dirs,omitempty" json:"dirs,omitempty" mapstructure:"dirs"`
}

type MboxFile struct {
	AbsPath     string `yaml:"abs_path" json:"abs_path" mapstructure:"abs_path"`
	CollectMode string `yaml:"collect_mode,omitempty" json:"collect_mode,omitempty" mapstructure:"collect_mode"`
	Compress    string `yaml:"compress_mode,omitempty" json:"compress_mode,omitempty" mapstructure:"compress_mode"`
}

// MboxDir is a directory of mailboxes archived together. Only the files
// directly inside it are read.
type MboxDir struct {
	AbsPath         string   `yaml:"abs_path" json:"abs_path" mapstructure:"abs_path"`
	CollectMode     string   `yaml:"collect_mode,omitempty" json:"collect_mode,omitempty" mapstructure:"collect_mode"`
	Compress        string   `yaml:"compress_mode,omitempty" json:"compress_mode,omitempty" mapstructure:"compress_mode"`
	RelativeExclude []string `yaml:"relative_exclude_paths,omitempty" json:"relative_exclude_paths,omitempty" mapstructure:"relative_exclude_paths"`
	ExcludePatterns []string `yaml:"exclude_patterns,omitempty" json:"exclude_patterns,omitempty" mapstructure:"exclude_patterns"`
}

// SplitConfig splits staged files larger than SizeLimit bytes into pieces of
// SplitSize bytes.
type SplitConfig struct {
	SizeLimit int64 `yaml:"size_limit" json:"size_limit" mapstructure:"size_limit"`
	SplitSize int64 `yaml:"split_size" json:"split_size" mapstructure:"split_size"`
}

// RunOptions carries the command-line switches that affect how actions run.
type RunOptions struct {
	Full        bool
	Managed     bool
	ManagedOnly bool
	Output      bool
	RunID       string
}
