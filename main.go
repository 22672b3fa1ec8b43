// The main package for the productcrawler executable.
package main

import "github.com/JakeFAU/ecom-product-crawler/cmd"

func main() {
	cmd.Execute()
}
