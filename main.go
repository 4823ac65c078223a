package main

import "github.com/patrickhamzaokello/ColabFavourites/cmd"

func main() {
	cmd.Execute()
}
