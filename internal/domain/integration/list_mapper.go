package integration

// ListAttributes are the lead attributes a board list stands for.
type ListAttributes struct {
	Status LeadStatus
	Region Region
	// StatusMapped and RegionMapped tell the caller whether a mapping fired
	StatusMapped bool
	RegionMapped bool
}

// ResolveList classifies a list using the tenant's mappings.
// Unmapped lists get DefaultLeadStatus and RegionOther; a nil config is the
// same as an empty one.
func ResolveList(listID string, cfg *SyncConfiguration) ListAttributes {
	attrs := ListAttributes{
		Status: DefaultLeadStatus,
		Region: RegionOther,
	}
	if cfg == nil || listID == "" {
		return attrs
	}
	if status, ok := cfg.ListStatus[listID]; ok && status != "" {
		attrs.Status = status
		attrs.StatusMapped = true
	}
	if region, ok := cfg.ListRegion[listID]; ok && region != "" {
		attrs.Region = region
		attrs.RegionMapped = true
	}
	return attrs
}
