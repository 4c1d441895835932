package testutil

import (
	"fmt"
	"strings"
)

// BabyNamesCSV is a small name-popularity table: five rows, two genders,
// three years.
const BabyNamesCSV = `year,name,gender,count
1910,Mary,F,100
1910,John,M,90
1911,Mary,F,80
1912,Anna,F,70
1912,John,M,95
`

// StreamersCSV is a streamer leaderboard with a few missing numbers.
const StreamersCSV = `user_name,followers,avg_viewers,game_name,country
alpha,500,40,Chess,US
bravo,1500,,Fortnite,DE
charlie,900,75,Chess,US
delta,,10,Minecraft,FR
echo,1500,30,Fortnite,US
`

// StockCSV returns n daily price rows starting 2024-01-01, newest first.
// Day i (zero based) closes at 10+2i with volume 100(i+1).
func StockCSV(n int) string {
	var b strings.Builder
	b.WriteString("Date,Open,High,Low,Close,Volume\n")
	for i := n - 1; i >= 0; i-- {
		c := 10 + 2*i
		fmt.Fprintf(&b, "2024-01-%02d,%d,%d,%d,%d,%d\n", i+1, c-1, c+1, c-2, c, 100*(i+1))
	}
	return b.String()
}
