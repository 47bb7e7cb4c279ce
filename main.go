// Command seopipe drives SEO articles through the content pipeline.
package main

import "github.com/AmazingeventParis/SEOproject-sub001/internal/cli"

func main() {
	cli.Execute()
}
