// Package pkgenum implements the closed enumerations and bitfields
// shared across the engine (spec §3/§4.A): Role, Status, Info, Filter,
// Restart, Group, Exit, SigType, UpgradeKind, Provides, plus the
// generic Bitfield machinery they're built on.
//
// Every enum here except Filter follows the same contract: a named
// string-backed type with its own "unknown" Unknown constant (distinct
// from the empty Go zero value), a ToText method, and a package-level
// FromText function that never panics —
// an unrecognized token always maps to Unknown rather than an error,
// exactly as §3 requires ("unrecognized text maps to Unknown, never a
// crash").
package pkgenum

// Role identifies the kind of transaction a Job performs. Each Role has
// exactly one backend entry point.
type Role string

const (
	RoleUnknown             Role = "unknown"
	RoleResolve             Role = "resolve"
	RoleInstallPackages     Role = "install-packages"
	RoleInstallFiles        Role = "install-files"
	RoleRemovePackages      Role = "remove-packages"
	RoleUpdatePackages      Role = "update-packages"
	RoleUpdateSystem        Role = "update-system"
	RoleRefreshCache        Role = "refresh-cache"
	RoleSearchName          Role = "search-name"
	RoleSearchDetails       Role = "search-details"
	RoleSearchGroup         Role = "search-group"
	RoleSearchFile          Role = "search-file"
	RoleGetDetails          Role = "get-details"
	RoleGetFiles            Role = "get-files"
	RoleGetUpdates          Role = "get-updates"
	RoleGetUpdateDetail     Role = "get-update-detail"
	RoleGetDistroUpgrades   Role = "get-distro-upgrades"
	RoleGetCategories       Role = "get-categories"
	RoleWhatProvides        Role = "what-provides"
	RoleDownloadPackages    Role = "download-packages"
	RoleGetRepoList         Role = "get-repo-list"
	RoleRepoSetData         Role = "repo-set-data"
	RoleSimulateInstall     Role = "simulate-install-packages"
	RoleSimulateRemove      Role = "simulate-remove-packages"
	RoleSimulateUpdate      Role = "simulate-update-packages"
)

var roleNames = newCodec([]Role{
	RoleUnknown, RoleResolve, RoleInstallPackages, RoleInstallFiles,
	RoleRemovePackages, RoleUpdatePackages, RoleUpdateSystem, RoleRefreshCache,
	RoleSearchName, RoleSearchDetails, RoleSearchGroup, RoleSearchFile,
	RoleGetDetails, RoleGetFiles, RoleGetUpdates, RoleGetUpdateDetail,
	RoleGetDistroUpgrades, RoleGetCategories, RoleWhatProvides,
	RoleDownloadPackages, RoleGetRepoList, RoleRepoSetData,
	RoleSimulateInstall, RoleSimulateRemove, RoleSimulateUpdate,
})

func (r Role) ToText() string { return string(r) }
func (r Role) Bit() uint      { return roleNames.bit(r) }

// RoleFromText parses a role name, returning RoleUnknown for anything
// unrecognized.
func RoleFromText(s string) Role {
	if v, ok := roleNames.fromText[s]; ok {
		return v
	}
	return RoleUnknown
}

// Status is the transient phase a Job reports while running.
type Status string

const (
	StatusUnknown       Status = "unknown"
	StatusWait          Status = "wait"
	StatusSetup         Status = "setup"
	StatusRunning       Status = "running"
	StatusQuery         Status = "query"
	StatusInfo          Status = "info"
	StatusRemove        Status = "remove"
	StatusRefreshCache  Status = "refresh-cache"
	StatusDownload      Status = "download"
	StatusInstall       Status = "install"
	StatusUpdate        Status = "update"
	StatusCleanup       Status = "cleanup"
	StatusObsolete      Status = "obsolete"
	StatusDepResolve    Status = "dep-resolve"
	StatusSigCheck      Status = "sig-check"
	StatusTestCommit    Status = "test-commit"
	StatusCommit        Status = "commit"
	StatusRequest       Status = "request"
	StatusFinished      Status = "finished"
	StatusCancel        Status = "cancel"
	StatusDownloadRepo  Status = "download-repository"
	StatusDownloadUpd   Status = "download-updateinfo"
	StatusDownloadPkg   Status = "download-package"
	StatusDownloadFlist Status = "download-filelist"
	StatusWaitingLock   Status = "waiting-for-lock"
	StatusScanApp       Status = "scan-applications"
	StatusGenerating    Status = "generate-package-list"
	StatusWaitingAuth   Status = "waiting-for-auth"
)

var statusNames = newCodec([]Status{
	StatusUnknown, StatusWait, StatusSetup, StatusRunning, StatusQuery,
	StatusInfo, StatusRemove, StatusRefreshCache, StatusDownload,
	StatusInstall, StatusUpdate, StatusCleanup, StatusObsolete,
	StatusDepResolve, StatusSigCheck, StatusTestCommit, StatusCommit,
	StatusRequest, StatusFinished, StatusCancel, StatusDownloadRepo,
	StatusDownloadUpd, StatusDownloadPkg, StatusDownloadFlist,
	StatusWaitingLock, StatusScanApp, StatusGenerating, StatusWaitingAuth,
})

func (s Status) ToText() string { return string(s) }

func StatusFromText(s string) Status {
	if v, ok := statusNames.fromText[s]; ok {
		return v
	}
	return StatusUnknown
}

// Info classifies a package result emitted during a query or
// transaction (installed, available, an update kind, ...).
type Info string

const (
	InfoUnknown      Info = "unknown"
	InfoInstalled    Info = "installed"
	InfoAvailable    Info = "available"
	InfoLow          Info = "low"
	InfoEnhancement  Info = "enhancement"
	InfoNormal       Info = "normal"
	InfoBugfix       Info = "bugfix"
	InfoImportant    Info = "important"
	InfoSecurity     Info = "security"
	InfoBlocked      Info = "blocked"
	InfoDownloading  Info = "downloading"
	InfoUpdating     Info = "updating"
	InfoInstalling   Info = "installing"
	InfoRemoving     Info = "removing"
	InfoCleanup      Info = "cleanup"
	InfoObsoleting   Info = "obsoleting"
	InfoCollectionI  Info = "collection-installed"
	InfoCollectionA  Info = "collection-available"
	InfoFinished     Info = "finished"
	InfoReinstalling Info = "reinstalling"
	InfoDowngrading  Info = "downgrading"
	InfoPreparing    Info = "preparing"
	InfoDecompress   Info = "decompressing"
	InfoUntrusted    Info = "untrusted"
	InfoTrusted      Info = "trusted"
)

var infoNames = newCodec([]Info{
	InfoUnknown, InfoInstalled, InfoAvailable, InfoLow, InfoEnhancement,
	InfoNormal, InfoBugfix, InfoImportant, InfoSecurity, InfoBlocked,
	InfoDownloading, InfoUpdating, InfoInstalling, InfoRemoving,
	InfoCleanup, InfoObsoleting, InfoCollectionI, InfoCollectionA,
	InfoFinished, InfoReinstalling, InfoDowngrading, InfoPreparing,
	InfoDecompress, InfoUntrusted, InfoTrusted,
})

func (i Info) ToText() string { return string(i) }

func InfoFromText(s string) Info {
	if v, ok := infoNames.fromText[s]; ok {
		return v
	}
	return InfoUnknown
}

// Restart describes the severity of a restart a package update requires.
type Restart string

const (
	RestartUnknown     Restart = "unknown"
	RestartNone        Restart = "none"
	RestartApplication Restart = "application"
	RestartSession     Restart = "session"
	RestartSystem      Restart = "system"
	RestartSecuritySes Restart = "security-session"
	RestartSecuritySys Restart = "security-system"
)

var restartNames = newCodec([]Restart{
	RestartUnknown, RestartNone, RestartApplication, RestartSession,
	RestartSystem, RestartSecuritySes, RestartSecuritySys,
})

func (r Restart) ToText() string { return string(r) }

func RestartFromText(s string) Restart {
	if v, ok := restartNames.fromText[s]; ok {
		return v
	}
	return RestartUnknown
}

// Group classifies a package into a UI-facing taxonomy.
type Group string

const (
	GroupUnknown       Group = "unknown"
	GroupAccessibility Group = "accessibility"
	GroupAdminTools    Group = "admin-tools"
	GroupCommunication Group = "communication"
	GroupDesktopGnome  Group = "desktop-gnome"
	GroupDevelopment   Group = "programming"
	GroupEducation     Group = "education"
	GroupFonts         Group = "fonts"
	GroupGames         Group = "games"
	GroupGraphics      Group = "graphics"
	GroupInternet      Group = "internet"
	GroupLegacy        Group = "legacy"
	GroupLocalization  Group = "localization"
	GroupMultimedia    Group = "multimedia"
	GroupNetwork       Group = "network"
	GroupOffice        Group = "office"
	GroupOther         Group = "other"
	GroupPowerManage   Group = "power-management"
	GroupPublishing    Group = "publishing"
	GroupRepos         Group = "repos"
	GroupSecurity      Group = "security"
	GroupServers       Group = "servers"
	GroupSystem        Group = "system"
	GroupVirtualization Group = "virtualization"
)

var groupNames = newCodec([]Group{
	GroupUnknown, GroupAccessibility, GroupAdminTools, GroupCommunication,
	GroupDesktopGnome, GroupDevelopment, GroupEducation, GroupFonts,
	GroupGames, GroupGraphics, GroupInternet, GroupLegacy, GroupLocalization,
	GroupMultimedia, GroupNetwork, GroupOffice, GroupOther, GroupPowerManage,
	GroupPublishing, GroupRepos, GroupSecurity, GroupServers, GroupSystem,
	GroupVirtualization,
})

func (g Group) ToText() string { return string(g) }

func GroupFromText(s string) Group {
	if v, ok := groupNames.fromText[s]; ok {
		return v
	}
	return GroupUnknown
}

// Exit is the terminal outcome reported with Finished.
type Exit string

const (
	ExitUnknown   Exit = "unknown"
	ExitSuccess   Exit = "success"
	ExitFailed    Exit = "failed"
	ExitCancelled Exit = "cancelled"
	ExitKeyRequired Exit = "key-required"
	ExitEulaRequired Exit = "eula-required"
	ExitNeedsRestart Exit = "needs-restart"
	ExitNeedUntrusted Exit = "need-untrusted"
)

var exitNames = newCodec([]Exit{
	ExitUnknown, ExitSuccess, ExitFailed, ExitCancelled, ExitKeyRequired,
	ExitEulaRequired, ExitNeedsRestart, ExitNeedUntrusted,
})

func (e Exit) ToText() string { return string(e) }

func ExitFromText(s string) Exit {
	if v, ok := exitNames.fromText[s]; ok {
		return v
	}
	return ExitUnknown
}

// SigType is the kind of cryptographic signature a repo-signature
// prompt is about.
type SigType string

const (
	SigTypeUnknown SigType = "unknown"
	SigTypeGPG     SigType = "gpg"
)

var sigTypeNames = newCodec([]SigType{SigTypeUnknown, SigTypeGPG})

func (s SigType) ToText() string { return string(s) }

func SigTypeFromText(s string) SigType {
	if v, ok := sigTypeNames.fromText[s]; ok {
		return v
	}
	return SigTypeUnknown
}

// UpgradeKind classifies a DistroUpgrade's stability.
type UpgradeKind string

const (
	UpgradeKindUnknown  UpgradeKind = "unknown"
	UpgradeKindStable   UpgradeKind = "stable"
	UpgradeKindUnstable UpgradeKind = "unstable"
)

var upgradeKindNames = newCodec([]UpgradeKind{
	UpgradeKindUnknown, UpgradeKindStable, UpgradeKindUnstable,
})

func (u UpgradeKind) ToText() string { return string(u) }

func UpgradeKindFromText(s string) UpgradeKind {
	if v, ok := upgradeKindNames.fromText[s]; ok {
		return v
	}
	return UpgradeKindUnknown
}

// Provides is a what-provides namespace a search term can be
// decomposed into (§4.G). The set here is a superset of the PackageKit
// original, which the spec explicitly allows ("superset is fine").
type Provides string

const (
	ProvidesUnknown        Provides = "unknown"
	ProvidesAny            Provides = "any"
	ProvidesName           Provides = "name"
	ProvidesGStreamer010   Provides = "gstreamer0.10"
	ProvidesGStreamer1     Provides = "gstreamer1"
	ProvidesFont           Provides = "font"
	ProvidesMimeHandler    Provides = "mimehandler"
	ProvidesPostscriptDrv  Provides = "postscriptdriver"
	ProvidesPlasma4        Provides = "plasma4"
	ProvidesPlasma5        Provides = "plasma5"
	ProvidesLanguageSup    Provides = "language-support"
)

var providesNames = newCodec([]Provides{
	ProvidesUnknown, ProvidesAny, ProvidesName, ProvidesGStreamer010,
	ProvidesGStreamer1, ProvidesFont, ProvidesMimeHandler,
	ProvidesPostscriptDrv, ProvidesPlasma4, ProvidesPlasma5,
	ProvidesLanguageSup,
})

func (p Provides) ToText() string { return string(p) }

func ProvidesFromText(s string) Provides {
	if v, ok := providesNames.fromText[s]; ok {
		return v
	}
	return ProvidesUnknown
}
