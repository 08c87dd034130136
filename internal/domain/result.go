package domain

// DownloadResult summarizes one run of the download manager. FailedURLs are
// enumerated for manual follow-up.
type DownloadResult struct {
	Discovered int
	Succeeded  int
	Failed     int
	Skipped    int
	FailedURLs []string
}
