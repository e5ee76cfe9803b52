package compiler

// Prelude is prepended to every submission so that solutions can use the
// standard library without their own includes. Bump PreludeVersion when it
// changes; diagnostics are re-based by PreludeLines.
const Prelude = `#include <algorithm>
#include <array>
#include <bitset>
#include <climits>
#include <cmath>
#include <cstdint>
#include <cstdio>
#include <cstdlib>
#include <cstring>
#include <deque>
#include <functional>
#include <iostream>
#include <list>
#include <map>
#include <numeric>
#include <queue>
#include <set>
#include <stack>
#include <string>
#include <tuple>
#include <unordered_map>
#include <unordered_set>
#include <utility>
#include <vector>
using namespace std;
`

// PreludeLines is the number of lines Prelude occupies.
const PreludeLines = 25

const PreludeVersion = 1
