package gen

// runtimeSource is the support module every emitted conversion calls into.
func runtimeSource() string {
	return `pub mod runtime {
    use std::ffi::{CStr, CString};
    use std::os::raw::c_char;

    /// Conversion between a native type and its FFI mirror.
    ///
    /// ffi_from* read the mirror without taking ownership of it.
    /// ffi_to* allocate a new mirror owned by the caller.
    pub trait FFIConversion<T>: Sized {
        /// # Safety
        /// ffi must point to a valid mirror.
        unsafe fn ffi_from_const(ffi: *const Self) -> T;
        /// # Safety
        /// The returned mirror must be released exactly once.
        unsafe fn ffi_to_const(obj: T) -> *const Self;
        /// # Safety
        /// ffi must point to a valid mirror.
        unsafe fn ffi_from(ffi: *mut Self) -> T {
            Self::ffi_from_const(ffi)
        }
        /// # Safety
        /// The returned mirror must be released exactly once.
        unsafe fn ffi_to(obj: T) -> *mut Self {
            Self::ffi_to_const(obj) as *mut Self
        }
        /// # Safety
        /// ffi must be null or point to a valid mirror.
        unsafe fn ffi_from_opt(ffi: *mut Self) -> Option<T> {
            (!ffi.is_null()).then(|| Self::ffi_from(ffi))
        }
        /// # Safety
        /// The returned mirror, when not null, must be released exactly once.
        unsafe fn ffi_to_opt(obj: Option<T>) -> *mut Self {
            match obj {
                Some(obj) => Self::ffi_to(obj),
                None => std::ptr::null_mut(),
            }
        }
        /// # Safety
        /// ffi must be null or a mirror allocated by ffi_to.
        unsafe fn destroy(ffi: *mut Self) {
            unbox_any_opt(ffi);
        }
    }

    pub fn boxed<T>(obj: T) -> *mut T {
        Box::into_raw(Box::new(obj))
    }

    /// Leaks vec as a boxed slice, so its capacity equals its length.
    pub fn boxed_vec<T>(vec: Vec<T>) -> *mut T {
        let mut slice = vec.into_boxed_slice();
        let ptr = slice.as_mut_ptr();
        std::mem::forget(slice);
        ptr
    }

    /// # Safety
    /// any must come from boxed.
    pub unsafe fn unbox_any<T: ?Sized>(any: *mut T) -> Box<T> {
        Box::from_raw(any)
    }

    /// # Safety
    /// any must be null or come from boxed.
    pub unsafe fn unbox_any_opt<T: ?Sized>(any: *mut T) {
        if !any.is_null() {
            unbox_any(any);
        }
    }

    /// # Safety
    /// data must be null or come from string_to_ffi.
    pub unsafe fn unbox_string(data: *mut c_char) {
        if !data.is_null() {
            let _ = CString::from_raw(data);
        }
    }

    /// # Safety
    /// ptr must be null or come from boxed_vec with count elements.
    pub unsafe fn unbox_vec_ptr<T>(ptr: *mut T, count: usize) -> Vec<T> {
        if ptr.is_null() {
            return Vec::new();
        }
        Box::from_raw(std::ptr::slice_from_raw_parts_mut(ptr, count)).into_vec()
    }

    /// # Safety
    /// ptr must be null or point to count valid elements.
    pub unsafe fn ffi_slice<'a, T>(ptr: *const T, count: usize) -> &'a [T] {
        if ptr.is_null() || count == 0 {
            &[]
        } else {
            std::slice::from_raw_parts(ptr, count)
        }
    }

    /// Decodes a C string. Invalid UTF-8 is replaced, null reads as empty.
    ///
    /// # Safety
    /// ptr must be null or a valid NUL-terminated string.
    pub unsafe fn string_from_ffi(ptr: *const c_char) -> String {
        if ptr.is_null() {
            return String::new();
        }
        CStr::from_ptr(ptr).to_string_lossy().into_owned()
    }

    /// Encodes a string as an owned C string. Interior NULs are dropped.
    pub fn string_to_ffi(s: String) -> *mut c_char {
        let s: String = s.chars().filter(|c| *c != '\0').collect();
        CString::new(s).unwrap_or_default().into_raw()
    }

    /// # Safety
    /// ptr must be null or a valid NUL-terminated string.
    pub unsafe fn char_from_ffi(ptr: *const c_char) -> char {
        string_from_ffi(ptr).chars().next().unwrap_or('\0')
    }

    pub fn char_to_ffi(c: char) -> *mut c_char {
        string_to_ffi(c.to_string())
    }

    /// Replaces the mirror behind ffi with the conversion of obj, releasing
    /// the previous contents.
    ///
    /// # Safety
    /// ffi must point to a valid mirror.
    pub unsafe fn replace_mirror<T, M: FFIConversion<T>>(ffi: *mut M, obj: T) {
        let fresh = M::ffi_to(obj);
        let old = std::ptr::replace(ffi, std::ptr::read(fresh));
        drop(Box::from_raw(fresh as *mut std::mem::ManuallyDrop<M>));
        drop(old);
    }
}
`
}
