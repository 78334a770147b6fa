package profile

// HCL-facing schema structs. These mirror the block layout of a profile
// file and are translated into the agnostic Model by the loader. Optional
// scalar attributes use pointers so "unset" is distinguishable from the
// zero value during merging.

type fileSchema struct {
	Sources     []*sourceBlock     `hcl:"source,block"`
	Classifiers []*classifierBlock `hcl:"classifier,block"`
	Export      *exportBlock       `hcl:"export,block"`
	Dashboard   *dashboardBlock    `hcl:"dashboard,block"`
	Notify      *notifyBlock       `hcl:"notify,block"`
}

type sourceBlock struct {
	Name        string `hcl:"name,label"`
	Path        string `hcl:"path"`
	Pattern     string `hcl:"pattern,optional"`
	AutoExtract bool   `hcl:"auto_extract,optional"`
}

type classifierBlock struct {
	Kind          string   `hcl:"kind,label"`
	Enabled       *bool    `hcl:"enabled,optional"`
	MinConfidence *float64 `hcl:"min_confidence,optional"`
	FieldHints    []string `hcl:"field_hints,optional"`
}

type exportBlock struct {
	OutDir     *string `hcl:"out_dir,optional"`
	Atlases    *bool   `hcl:"atlases,optional"`
	Thumbnails *bool   `hcl:"thumbnails,optional"`
	ThumbSize  *int    `hcl:"thumb_size,optional"`
}

type dashboardBlock struct {
	Listen   *string `hcl:"listen,optional"`
	Username *string `hcl:"username,optional"`
	Password *string `hcl:"password,optional"`
	DataDir  *string `hcl:"data_dir,optional"`
}

type notifyBlock struct {
	URL                string `hcl:"url"`
	Namespace          string `hcl:"namespace,optional"`
	EmitEvent          string `hcl:"emit_event"`
	AckEvent           string `hcl:"ack_event,optional"`
	Timeout            string `hcl:"timeout,optional"`
	InsecureSkipVerify bool   `hcl:"insecure_skip_verify,optional"`
}
