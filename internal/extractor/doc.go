// Package extractor pulls the page metadata recorded for every crawled URL
// (title, meta description, first H1) and the outbound links.
//
// HTML documents are decoded to UTF-8 according to their declared charset,
// parsed with golang.org/x/net/html and queried with goquery. PDF documents
// are recognized by their URL or content type; their title and subject come
// from the document information dictionary, read with pdfcpu, and their
// heading is always model.PDFHeading.
package extractor
