// ./main.go
package main

import (
	"github.com/xkilldash9x/voyant/cmd"
)

func main() {
	cmd.Execute()
}
