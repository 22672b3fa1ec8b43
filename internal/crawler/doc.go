// Package crawler holds the crawl engine for discovering e-commerce product
// pages. Concrete fetchers, classifiers, extractors and storage sinks live in
// sibling packages and plug in through the interfaces declared here.
package crawler
