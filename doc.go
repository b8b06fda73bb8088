// Package assetcache materializes binary assets referenced by remote content into a local corpus.
//
// A build runs in two phases. Pipeline walks all pages of a content.Source, extracts asset
// references, refreshes expired signed URLs with a Resolver and downloads every asset at most once
// with a Fetcher. Afterwards BuildIndex scans the corpus and produces an Index that maps remote
// asset URLs to their local copies for the rendering stage.
//
// Assets are keyed by the last two segments of the URL path (see types.KeyFromURL), so the key
// survives URL re-signing and the same asset referenced from many places is stored once.
package assetcache
