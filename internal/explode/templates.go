package explode

import "fmt"

// loaderTemplate is appended to the parameter cell when a save-list is
// declared. On re-execution it reloads the archive written by the saving
// cell and halts the notebook if one exists.
const loaderTemplate = `
# What follows is a code snippet to load the __saved__ variables on
# re-execution, of this notebook.  This code only raises exception if the last
# cell in this notebook ran, and the desired variables were saved
try:
    saved_npz = '%s.npz';
    import numpy as np; _loaded = np.load(saved_npz);
    locals().update(_loaded); import datetime; import os.path;
    tstamp = os.path.getmtime(saved_npz) ;
    t = datetime.datetime.fromtimestamp(tstamp).strftime("%%Y-%%d-%%m @ %%H:%%M:%%S")
    class AlreadyRan(Exception): pass
    raise AlreadyRan("it appears this notebook already ran on %%s, halting" %%t)
except IOError:
    pass
__save__ = %s
`

// footerTemplate is the source of the appended saving cell.
const footerTemplate = `## autogenerated saving cell
np.savez('%s', %s)
`

const headerTemplate = "## Parameterized by %s\n"

func loaderSource(outfile, saveRepr string) string {
	return fmt.Sprintf(loaderTemplate, outfile, saveRepr)
}

func footerSource(outfile, savedParams string) string {
	return fmt.Sprintf(footerTemplate, outfile, savedParams)
}

func headerSource(source string) string {
	return fmt.Sprintf(headerTemplate, source)
}
