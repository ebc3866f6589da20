package session

import "github.com/ethan/rp-webrtc-gateway/pkg/config"

// DefaultsTable resolves effective SessionStartOptions from three tiers,
// narrowest first: user overrides, device overrides, built-in defaults
// (§3.2, §4.3: "resolves effective SessionStartOptions from (user-defaults,
// device-defaults, defaults-table)").
type DefaultsTable struct {
	builtin       SessionStartOptions
	deviceOverride map[string]SessionStartOptions // keyed by HostId
	userOverride   map[string]SessionStartOptions // keyed by UserId
}

// NewDefaultsTable seeds the built-in tier from the loaded configuration.
func NewDefaultsTable(cfg config.SessionDefaults) *DefaultsTable {
	return &DefaultsTable{
		builtin: SessionStartOptions{
			Width:         cfg.Width,
			Height:        cfg.Height,
			Fps:           cfg.Fps,
			BitrateKbps:   cfg.BitrateKbps,
			Codec:         Codec(cfg.Codec),
			Hdr:           cfg.Hdr,
			AudioChannels: cfg.AudioChannels,
			MTU:           cfg.MTU,
			Language:      cfg.Language,
			AcceptButton:  cfg.AcceptButton,
			Controllers:   cfg.Controllers,
		},
		deviceOverride: make(map[string]SessionStartOptions),
		userOverride:   make(map[string]SessionStartOptions),
	}
}

// SetDeviceOverride registers per-device overrides (e.g. a console's
// negotiated capability ceiling).
func (t *DefaultsTable) SetDeviceOverride(hostId string, opts SessionStartOptions) {
	t.deviceOverride[hostId] = opts
}

// SetUserOverride registers per-user overrides (e.g. a user's preferred
// resolution/bitrate).
func (t *DefaultsTable) SetUserOverride(userId string, opts SessionStartOptions) {
	t.userOverride[userId] = opts
}

// Resolve merges the three tiers field by field: a zero-valued field in a
// narrower tier falls through to the next tier rather than overriding with
// a meaningless zero.
func (t *DefaultsTable) Resolve(hostId, userId string) SessionStartOptions {
	resolved := t.builtin

	if dev, ok := t.deviceOverride[hostId]; ok {
		resolved = mergeNonZero(resolved, dev)
	}
	if user, ok := t.userOverride[userId]; ok {
		resolved = mergeNonZero(resolved, user)
	}

	return resolved
}

func mergeNonZero(base, override SessionStartOptions) SessionStartOptions {
	if override.Width != 0 {
		base.Width = override.Width
	}
	if override.Height != 0 {
		base.Height = override.Height
	}
	if override.Fps != 0 {
		base.Fps = override.Fps
	}
	if override.QualityTier != 0 {
		base.QualityTier = override.QualityTier
	}
	if override.BitrateKbps != 0 {
		base.BitrateKbps = override.BitrateKbps
	}
	if override.Codec != "" {
		base.Codec = override.Codec
	}
	if override.Hdr {
		base.Hdr = override.Hdr
	}
	if override.AudioChannels != "" {
		base.AudioChannels = override.AudioChannels
	}
	if override.RTTHintMs != 0 {
		base.RTTHintMs = override.RTTHintMs
	}
	if override.MTU != 0 {
		base.MTU = override.MTU
	}
	if override.Language != "" {
		base.Language = override.Language
	}
	if override.AcceptButton != "" {
		base.AcceptButton = override.AcceptButton
	}
	if len(override.Controllers) > 0 {
		base.Controllers = override.Controllers
	}
	return base
}
