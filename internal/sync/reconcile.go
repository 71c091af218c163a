package sync

// Classify joins manifest entries against content records and produces the
// display-ready status for every entry, in manifest order.
//
// Records whose key no longer appears in the manifest (deprecated content)
// are excluded from the result but never deleted here — deletion is only
// ever explicit.
func Classify(entries []ManifestEntry, records map[string]*ContentRecord) []DownloadInfo {
	infos := make([]DownloadInfo, 0, len(entries))
	for _, e := range entries {
		info := DownloadInfo{
			Key:          e.Key,
			DisplayName:  e.DisplayName,
			ContentType:  e.ContentType,
			LanguageCode: e.LanguageCode,
			SizeBytes:    e.SizeEstimate,
		}

		rec := records[RecordKey(e.ContentType, e.Key)]
		switch {
		case rec == nil:
			info.Status = NotDownloaded
		case rec.Status == StatusInstalling:
			info.Status = Downloading
		default:
			info.Status = installedStatus(rec.InstalledVersion, e.Version)
			info.SizeBytes = rec.SizeBytes
			info.DownloadedAt = rec.InstalledAt
		}

		infos = append(infos, info)
	}
	return infos
}

// installedStatus compares an installed version token against the manifest
// token. An incomparable pair classifies as update_available, never as
// downloaded.
func installedStatus(installed, remote string) DownloadStatus {
	cmp, ok := CompareVersions(installed, remote)
	if !ok || cmp < 0 {
		return UpdateAvailable
	}
	return Downloaded
}

// recordMap indexes records by their canonical record key.
func recordMap(records []*ContentRecord) map[string]*ContentRecord {
	m := make(map[string]*ContentRecord, len(records))
	for _, r := range records {
		m[RecordKey(r.ContentType, r.Key)] = r
	}
	return m
}
