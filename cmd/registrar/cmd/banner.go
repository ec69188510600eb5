package cmd

import (
	"fmt"
	"io"
)

const banner = `
  ____            _     _                  
 |  _ \ ___  __ _(_)___| |_ _ __ __ _ _ __ 
 | |_) / _ \/ _` + "`" + ` | / __| __| '__/ _` + "`" + ` | '__|
 |  _ <  __/ (_| | \__ \ |_| | | (_| | |   
 |_| \_\___|\__, |_|___/\__|_|  \__,_|_|   
            |___/                          
`

func printBanner(w io.Writer) {
	fmt.Fprintf(w, "\x1b[34m%s\x1b[0m", banner)
	fmt.Fprintf(w, "\x1b[32m  Course Registration - Version %s\x1b[0m\n\n", Version)
}
