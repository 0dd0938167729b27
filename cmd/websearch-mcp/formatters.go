package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/noeticlabs/websearch/internal/models"
	"github.com/noeticlabs/websearch/internal/services/chunks"
	"github.com/noeticlabs/websearch/internal/services/crawler"
)

// formatSearchResponse renders search results as markdown
func formatSearchResponse(query string, resp *models.SearchResponse) string {
	var sb strings.Builder

	source := resp.Provider
	if resp.FromCache {
		source = "semantic cache"
	}
	sb.WriteString(fmt.Sprintf("# Search: %s\n\n%d results via %s\n\n", query, len(resp.Results), source))

	if len(resp.Results) == 0 {
		sb.WriteString("No results found.\n")
		return sb.String()
	}

	for i, r := range resp.Results {
		sb.WriteString(fmt.Sprintf("## %d. %s\n", i+1, r.Title))
		sb.WriteString(fmt.Sprintf("%s\n\n", r.URL))
		if r.Snippet != "" {
			sb.WriteString(r.Snippet + "\n\n")
		}
		for _, extra := range r.ExtraSnippets {
			sb.WriteString("> " + extra + "\n")
		}
	}
	return sb.String()
}

// formatCrawlResponse renders a crawled page as markdown
func formatCrawlResponse(resp *crawler.CrawlResponse) string {
	var sb strings.Builder
	result := resp.Result

	title := result.Title
	if title == "" {
		title = result.URL
	}
	sb.WriteString(fmt.Sprintf("# %s\n\n", title))
	sb.WriteString(fmt.Sprintf("URL: %s | fetcher: %s | status: %d | %d words\n",
		result.URL, result.FetcherUsed, result.StatusCode, result.WordCount))
	if resp.Chunked > 0 {
		sb.WriteString(fmt.Sprintf("Indexed %d chunks into the cache\n", resp.Chunked))
	}
	sb.WriteString("\n---\n\n")
	sb.WriteString(result.Content)
	return sb.String()
}

// formatChunkResponse summarizes a chunking pass
func formatChunkResponse(resp *chunks.Response) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Split into %d chunks (%d stored)\n\n", len(resp.Chunks), resp.Stored))
	for _, chunk := range resp.Chunks {
		preview := chunk.Content
		if len(preview) > 120 {
			preview = preview[:120] + "..."
		}
		sb.WriteString(fmt.Sprintf("- [%d] %d tokens: %s\n", chunk.Index, chunk.TokenCount, preview))
	}
	return sb.String()
}

// formatMatches renders cache query matches as markdown
func formatMatches(query string, matches []models.VectorMatch) string {
	if len(matches) == 0 {
		return fmt.Sprintf("No cached entries matched %q.", query)
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("# Cache matches: %s\n\n", query))
	for i, m := range matches {
		sb.WriteString(fmt.Sprintf("## %d. %s (score %.3f)\n", i+1, m.ID, m.Score))
		if source := m.Metadata["sourceUrl"]; source != "" {
			sb.WriteString(source + "\n")
		}
		content := m.Content
		if len(content) > 800 {
			content = content[:800] + "..."
		}
		sb.WriteString(content + "\n\n")
	}
	return sb.String()
}

// formatURLList renders a discovered URL list
func formatURLList(heading string, urls []string, total int) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("# %s (%d of %d)\n\n", heading, len(urls), total))
	for _, u := range urls {
		sb.WriteString("- " + u + "\n")
	}
	return sb.String()
}

// formatJobStatus renders one job snapshot
func formatJobStatus(status models.JobStatus) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Job %s: %s\n", status.ID, status.State))
	sb.WriteString(fmt.Sprintf("Progress: %d crawled, %d failed of %d URLs (%d pages indexed) in %s\n",
		status.Crawled, status.Failed, status.TotalURLs, status.Chunked,
		status.Elapsed.Round(time.Millisecond)))
	for _, jobErr := range status.Errors {
		sb.WriteString(fmt.Sprintf("- failed %s: %s\n", jobErr.URL, jobErr.Reason))
	}
	return sb.String()
}
